package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mediavault/indexd/internal/catalog"
	"github.com/mediavault/indexd/internal/config"
	"github.com/mediavault/indexd/internal/dimcache"
	"github.com/mediavault/indexd/internal/indexer"
	"github.com/mediavault/indexd/internal/legacydb"
	"github.com/mediavault/indexd/internal/lockkv"
	"github.com/mediavault/indexd/internal/sideeffects"
)

// openCatalog implements the catalog-facing half of spec.md §4.6's
// startup sequence: verify the data/thumbnail directories exist and are
// writable, check for a legacy single-database installation, then open
// and migrate the four logical databases.
func openCatalog(ctx context.Context, cfg *config.Config, log *slog.Logger) (*catalog.Store, error) {
	if err := os.MkdirAll(flags.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(flags.thumbDir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := verifyWritable(flags.thumbDir); err != nil {
		return nil, fmt.Errorf("thumbnail root: %w", err)
	}

	legacyStatus, err := legacydb.Detect(flags.dataDir)
	if err != nil {
		return nil, fmt.Errorf("legacy db detection: %w", err)
	}
	if legacyStatus.NeedsMigration() {
		log.Warn("legacy single-database installation detected; run `indexd migrate` before starting",
			"data_dir", flags.dataDir, "legacy_file", legacydb.LegacyFileName)
	}

	store, err := catalog.Open(flags.dataDir, cfg.SQLite.PragmaOptions())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}

	if err := resetStaleProcessingThumbs(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("reset stale thumb status: %w", err)
	}
	if err := selfHealThumbConsistency(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("thumb consistency self-heal: %w", err)
	}

	return store, nil
}

// verifyWritable confirms dir is writable by creating and removing a
// probe file in it, matching spec.md §4.6 step 1's "verify thumbnail-root
// write permission" -- a directory can exist and be stat-able while still
// being mounted read-only, which os.MkdirAll alone would never catch.
func verifyWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".indexd-write-probe-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	path := probe.Name()
	probe.Close()
	return os.Remove(path)
}

// resetStaleProcessingThumbs implements spec.md §4.6 step 4: a
// thumb_status row left in 'processing' across a restart means the worker
// that claimed it died mid-generation, so it's reset to 'pending' to be
// retried rather than left stuck forever.
func resetStaleProcessingThumbs(ctx context.Context, store *catalog.Store) error {
	return store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE thumb_status SET status = ? WHERE status = ?`, string(catalog.ThumbPending), string(catalog.ThumbProcessing))
		return err
	})
}

// selfHealThumbConsistency implements spec.md §4.6 step 5: if the
// thumbnail root is empty but many rows still claim status='exists', the
// thumbnail storage was wiped out from under the catalog (a restored
// backup, a cleared volume) -- those rows are reset to pending with
// mtime=0 so the thumbnail pipeline regenerates them rather than serving
// 404s forever.
func selfHealThumbConsistency(ctx context.Context, store *catalog.Store) error {
	entries, err := os.ReadDir(flags.thumbDir)
	if err != nil {
		return fmt.Errorf("read thumbnail root: %w", err)
	}
	if len(entries) > 0 {
		return nil
	}

	return store.WithTransaction(ctx, catalog.DBMain, catalog.TxImmediate, func(ctx context.Context, tx *catalog.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM thumb_status WHERE status = ?`, string(catalog.ThumbExists)).Scan(&existing); err != nil {
			return err
		}
		if existing == 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE thumb_status SET status = ?, mtime = 0 WHERE status = ?`, string(catalog.ThumbPending), string(catalog.ThumbExists))
		return err
	})
}

// workerStack bundles the collaborators every subcommand that touches the
// catalog needs: a lockkv registry, the dimension cache, the indexing
// worker, and the invalidator the watcher adapter calls after a commit.
type workerStack struct {
	registry     *lockkv.Registry
	dimCache     *dimcache.Cache
	worker       *indexer.Worker
	invalidator  *sideeffects.Invalidator
	videoHandoff *sideeffects.VideoHandoff
}

// buildWorkerStack wires lockkv -> dimcache -> indexer.Worker exactly the
// way DESIGN.md's wiring order names: the dimension cache's L2 tier and
// the worker's cache-tag invalidator both share the one lockkv.Registry,
// so a distributed KV outage degrades both consistently.
func buildWorkerStack(store *catalog.Store, cfg *config.Config, log *slog.Logger, sink indexer.Sink) (*workerStack, error) {
	registry, err := lockkv.Open(flags.dataDir, log)
	if err != nil {
		return nil, fmt.Errorf("open lockkv registry: %w", err)
	}

	prober := indexer.NewMediaProber(flags.photosDir, nil) // video probing is an external collaborator, out of scope
	dimCache, err := dimcache.New(dimcache.DefaultL1Capacity, registry, dimcache.DefaultL2TTL, prober)
	if err != nil {
		registry.Close()
		return nil, fmt.Errorf("build dimension cache: %w", err)
	}

	worker := indexer.NewWorker(store, flags.photosDir, dimCache, cfg.IndexerOptions(), sink)
	store.SetIndexingInProgress(worker.CriticalTaskRunning)
	invalidator := sideeffects.NewInvalidator(registry)
	videoHandoff := sideeffects.NewVideoHandoff(flags.photosDir, flags.thumbDir, newLogVideoPipeline(log))

	return &workerStack{registry: registry, dimCache: dimCache, worker: worker, invalidator: invalidator, videoHandoff: videoHandoff}, nil
}

func (s *workerStack) Close() {
	if s.dimCache != nil {
		s.dimCache.Close()
	}
	if s.registry != nil {
		s.registry.Close()
	}
}
