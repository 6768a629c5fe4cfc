package storage

import (
	"errors"

	"github.com/taylored/runnerd/pkg/types"
)

// ErrNotFound is returned when no journaled record exists for a session.
var ErrNotFound = errors.New("record not found")

// Store journals runner records so a restarted orchestrator can reconcile
// its registry against the container daemon. The registry remains the
// authoritative in-memory view; the store is write-through.
type Store interface {
	PutRunner(record *types.RunnerRecord) error
	GetRunner(sessionID string) (*types.RunnerRecord, error)
	ListRunners() ([]*types.RunnerRecord, error)
	DeleteRunner(sessionID string) error
	Close() error
}
