package app

import (
	"fmt"
	"time"

	"github.com/d4rkfella/db-backup/internal/pkg/dump"
	"github.com/d4rkfella/db-backup/internal/pkg/retention"
	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/util"
)

type State string

const (
	StateIdle       State = "idle"
	StatePruning    State = "pruning"
	StateDumping    State = "dumping"
	StateUploading  State = "uploading"
	StateCleaningUp State = "cleaning_up"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// FilesystemError reports a local file operation that failed.
type FilesystemError struct {
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error on %s: %v", util.SanitizePath(e.Path), e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Report is the outcome of one run.
type Report struct {
	State       State
	Transitions []State

	Cutoff   time.Time
	Prune    *retention.Result
	PruneErr error

	Artifact *dump.Artifact
	Remote   *storage.Object

	UploadErr  error
	CleanupErr error
	// Err is set only when State is StateFailed.
	Err error

	Duration time.Duration
}

// transition moves the report to a new state. Terminal states are absorbing.
func (r *Report) transition(to State) {
	if r.State.Terminal() {
		return
	}
	r.State = to
	r.Transitions = append(r.Transitions, to)
}
