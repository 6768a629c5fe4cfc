package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taylored/runnerd/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)

	rec := &types.RunnerRecord{
		SessionID:    "s1",
		ContainerID:  "c1",
		HostPort:     40123,
		NetworkMode:  types.NetworkModeDefault,
		LastActivity: time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, s.PutRunner(rec))

	got, err := s.GetRunner("s1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ContainerID)
	assert.Equal(t, 40123, got.HostPort)

	require.NoError(t, s.DeleteRunner("s1"))
	_, err = s.GetRunner("s1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.DeleteRunner("s1"))
}

func TestPutOverwrites(t *testing.T) {
	s := newTestStore(t)

	rec := &types.RunnerRecord{SessionID: "s1", ContainerID: "old"}
	require.NoError(t, s.PutRunner(rec))
	rec.ContainerID = "new"
	require.NoError(t, s.PutRunner(rec))

	got, err := s.GetRunner("s1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ContainerID)
}

func TestListRunners(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListRunners()
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.PutRunner(&types.RunnerRecord{SessionID: "a", ContainerID: "ca"}))
	require.NoError(t, s.PutRunner(&types.RunnerRecord{SessionID: "b", ContainerID: "cb"}))

	list, err = s.ListRunners()
	require.NoError(t, err)
	require.Len(t, list, 2)

	sessions := map[string]string{}
	for _, r := range list {
		sessions[r.SessionID] = r.ContainerID
	}
	assert.Equal(t, map[string]string{"a": "ca", "b": "cb"}, sessions)
}
