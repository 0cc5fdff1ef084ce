// Package catalog owns the four logical SQLite databases that back the
// photo/video library: main, settings, history and index. It is the only
// package that issues PRAGMAs or opens *sql.DB handles for those files.
package catalog

// ItemType classifies a row in the items table.
type ItemType string

const (
	ItemAlbum ItemType = "album"
	ItemPhoto ItemType = "photo"
	ItemVideo ItemType = "video"
)

// Item is a row in the main.items table.
type Item struct {
	ID     int64
	Path   string
	Name   string
	Type   ItemType
	Mtime  int64
	Width  int
	Height int
}

// ThumbState is the lifecycle of a media file's thumbnail.
type ThumbState string

const (
	ThumbPending          ThumbState = "pending"
	ThumbProcessing       ThumbState = "processing"
	ThumbExists           ThumbState = "exists"
	ThumbMissing          ThumbState = "missing"
	ThumbFailed           ThumbState = "failed"
	ThumbPermanentFailed  ThumbState = "permanent_failed"
)

// ThumbStatus is a row in the main.thumb_status table.
type ThumbStatus struct {
	Path        string
	Mtime       int64
	Status      ThumbState
	LastChecked int64
}

// AlbumCover is a row in the main.album_covers table.
type AlbumCover struct {
	AlbumPath string
	CoverPath string
	Width     int
	Height    int
	Mtime     int64
}

// IndexPhase is the coarse state of a rebuild.
type IndexPhase string

const (
	PhaseIdle     IndexPhase = "idle"
	PhaseBuilding IndexPhase = "building"
	PhaseComplete IndexPhase = "complete"
	PhasePending  IndexPhase = "pending"
)

// IndexStatus is the singleton index.index_status row (id=1).
type IndexStatus struct {
	Status        IndexPhase
	ProcessedFiles int
	TotalFiles     int
	LastUpdated    int64
}

// ProgressKeyLastProcessedPath is the index_progress key holding the resume cursor.
const ProgressKeyLastProcessedPath = "last_processed_path"
