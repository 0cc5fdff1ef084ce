package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ev(kind EventKind, fingerprint string) rawEvent {
	return rawEvent{kind: kind, fingerprint: fingerprint, at: time.Now()}
}

func TestConsolidate_AddThenUnlinkDropsBoth(t *testing.T) {
	require.Equal(t, ChangeNone, consolidate([]rawEvent{ev(EventAdd, "a"), ev(EventUnlink, "")}))
}

func TestConsolidate_UnlinkThenAddEmitsUpdate(t *testing.T) {
	require.Equal(t, ChangeUpdate, consolidate([]rawEvent{ev(EventUnlink, ""), ev(EventAdd, "a")}))
}

func TestConsolidate_TwoAddsEqualFingerprintKeepsOne(t *testing.T) {
	require.Equal(t, ChangeAdd, consolidate([]rawEvent{ev(EventAdd, "sha-a"), ev(EventAdd, "sha-a")}))
}

func TestConsolidate_TwoAddsDifferentFingerprintEmitsUpdate(t *testing.T) {
	require.Equal(t, ChangeUpdate, consolidate([]rawEvent{ev(EventAdd, "sha-a"), ev(EventAdd, "sha-b")}))
}

func TestConsolidate_TwoAddsBothMissingFingerprintTreatedEqual(t *testing.T) {
	require.Equal(t, ChangeAdd, consolidate([]rawEvent{ev(EventAdd, ""), ev(EventAdd, "")}))
}

func TestConsolidate_OneMissingFingerprintKeepsOne(t *testing.T) {
	require.Equal(t, ChangeAdd, consolidate([]rawEvent{ev(EventAdd, "sha-a"), ev(EventAdd, "")}))
}

func TestConsolidate_SingleAddEmitsAdd(t *testing.T) {
	require.Equal(t, ChangeAdd, consolidate([]rawEvent{ev(EventAdd, "sha-a")}))
}

func TestConsolidate_SingleUnlinkEmitsUnlink(t *testing.T) {
	require.Equal(t, ChangeUnlink, consolidate([]rawEvent{ev(EventUnlink, "")}))
}

func TestConsolidate_ThreeEventEndingInMutationEmitsUpdate(t *testing.T) {
	require.Equal(t, ChangeUpdate, consolidate([]rawEvent{ev(EventAdd, "a"), ev(EventUnlink, ""), ev(EventAdd, "b")}))
}

func TestConsolidate_EmptyHistoryIsNone(t *testing.T) {
	require.Equal(t, ChangeNone, consolidate(nil))
}
