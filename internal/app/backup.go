// Package app runs the backup job: prune, dump, upload, clean up.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/internal/pkg/dump"
	"github.com/d4rkfella/db-backup/internal/pkg/notify"
	"github.com/d4rkfella/db-backup/internal/pkg/retention"
	"github.com/d4rkfella/db-backup/internal/pkg/storage"
	"github.com/d4rkfella/db-backup/internal/util"
)

const DefaultFilePrefix = "backup-"

type Options struct {
	FolderID   string
	FilePrefix string
	// TempDir holds the local artifact. Defaults to os.TempDir().
	TempDir   string
	Retention retention.Policy
	// UploadFailureFatal ends the run in StateFailed when the upload fails.
	UploadFailureFatal bool
	SecureDelete       bool
	Now                func() time.Time
}

type Backup struct {
	gateway  storage.Gateway
	dumper   Dumper
	pruner   Pruner
	notifier Notifier
	opts     Options
	logger   zerolog.Logger
}

// NewBackup wires a run. notifier may be nil.
func NewBackup(gateway storage.Gateway, dumper Dumper, pruner Pruner, notifier Notifier, opts Options) (*Backup, error) {
	if gateway == nil || dumper == nil || pruner == nil {
		return nil, errors.New("gateway, dumper and pruner are required")
	}
	if opts.FolderID == "" {
		return nil, errors.New("folder ID is required")
	}
	if opts.FilePrefix == "" {
		opts.FilePrefix = DefaultFilePrefix
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Backup{
		gateway:  gateway,
		dumper:   dumper,
		pruner:   pruner,
		notifier: notifier,
		opts:     opts,
		logger:   log.With().Str("component", "backup").Str("backend", gateway.Name()).Logger(),
	}, nil
}

// Run executes one backup. The returned error is non-nil exactly when the
// report ends in StateFailed.
func (b *Backup) Run(ctx context.Context) (report *Report, err error) {
	start := b.opts.Now()
	report = &Report{State: StateIdle, Transitions: []State{StateIdle}}
	cleaned := false

	defer func() {
		report.Duration = b.opts.Now().Sub(start)
		b.notify(ctx, notify.OperationBackup, report)
		if report.State == StateFailed {
			err = report.Err
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("Recovered from panic during backup")
			if report.Artifact != nil && !cleaned {
				report.CleanupErr = b.cleanup(report.Artifact.LocalPath)
			}
			b.fail(report, fmt.Errorf("panic during %s: %v", report.State, r))
		}
	}()

	if b.opts.Retention.Enabled() {
		b.prune(ctx, report)
	} else {
		b.logger.Debug().Msg("Retention disabled, skipping pruning")
	}

	report.transition(StateDumping)
	name := dump.ArtifactName(b.opts.FilePrefix, b.opts.Now())
	localPath := filepath.Join(b.opts.TempDir, name)
	b.logger.Info().Str("file", name).Str("path", util.SanitizePath(localPath)).Msg("Creating database dump")

	artifact, dumpErr := b.dumper.Produce(ctx, localPath)
	if dumpErr != nil {
		b.logger.Error().Err(dumpErr).Msg("Database dump failed, nothing will be uploaded")
		b.fail(report, fmt.Errorf("failed to create database dump: %w", dumpErr))
		return report, nil
	}
	report.Artifact = artifact
	b.logger.Info().Str("file", artifact.Filename).Int64("size_bytes", artifact.SizeBytes).Msg("Database dump created")

	report.transition(StateUploading)
	remote, uploadErr := b.upload(ctx, artifact)
	if uploadErr != nil {
		report.UploadErr = uploadErr
		b.logger.Error().Err(uploadErr).Str("file", artifact.Filename).Msg("Upload failed")
	} else {
		report.Remote = &remote
		b.logger.Info().Str("file", artifact.Filename).Str("object_id", remote.ID).Msg("Upload completed")
	}

	report.transition(StateCleaningUp)
	report.CleanupErr = b.cleanup(artifact.LocalPath)
	cleaned = true

	if uploadErr != nil && b.opts.UploadFailureFatal {
		b.fail(report, fmt.Errorf("failed to upload backup: %w", uploadErr))
		return report, nil
	}

	report.transition(StateDone)
	b.logger.Info().Bool("uploaded", uploadErr == nil).Msg("Backup run finished")
	return report, nil
}

// Prune runs only the retention pass. It fails when retention is disabled.
func (b *Backup) Prune(ctx context.Context) (*Report, error) {
	start := b.opts.Now()
	report := &Report{State: StateIdle, Transitions: []State{StateIdle}}
	if !b.opts.Retention.Enabled() {
		b.fail(report, errors.New("retention is disabled"))
		return report, report.Err
	}

	b.prune(ctx, report)
	if report.PruneErr != nil {
		b.fail(report, report.PruneErr)
	} else {
		report.transition(StateDone)
	}
	report.Duration = b.opts.Now().Sub(start)
	b.notify(ctx, notify.OperationPrune, report)
	return report, report.Err
}

func (b *Backup) prune(ctx context.Context, report *Report) {
	report.transition(StatePruning)
	report.Cutoff = b.opts.Retention.Cutoff(b.opts.Now())
	b.logger.Info().Str("retention", b.opts.Retention.String()).Time("cutoff", report.Cutoff).Msg("Pruning old backups")

	res, err := b.pruner.PruneOlderThan(ctx, b.opts.FolderID, report.Cutoff)
	report.Prune = &res
	if err != nil {
		report.PruneErr = err
		b.logger.Warn().Err(err).Msg("Pruning incomplete, continuing")
		return
	}
	b.logger.Info().Int("deleted", res.Deleted).Int("skipped", res.Skipped).Msg("Pruning finished")
}

func (b *Backup) upload(ctx context.Context, artifact *dump.Artifact) (storage.Object, error) {
	if err := b.gateway.VerifyFolderAccess(ctx, b.opts.FolderID); err != nil {
		return storage.Object{}, err
	}

	f, err := os.Open(artifact.LocalPath)
	if err != nil {
		return storage.Object{}, &FilesystemError{Path: artifact.LocalPath, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			b.logger.Warn().Err(cerr).Msg("Failed to close artifact after upload")
		}
	}()

	b.logger.Info().Str("file", artifact.Filename).Str("folder_id", b.opts.FolderID).Msg("Uploading backup")
	return b.gateway.UploadObject(ctx, b.opts.FolderID, artifact.Filename, storage.ArchiveMimeType, f)
}

func (b *Backup) cleanup(path string) error {
	if err := util.SecureDelete(path, b.opts.SecureDelete); err != nil {
		ferr := &FilesystemError{Path: path, Err: err}
		b.logger.Error().Err(ferr).Msg("Failed to remove local artifact")
		return ferr
	}
	return nil
}

func (b *Backup) fail(report *Report, err error) {
	if report.State.Terminal() {
		return
	}
	report.Err = err
	report.transition(StateFailed)
}

func (b *Backup) notify(ctx context.Context, op notify.Operation, report *Report) {
	if b.notifier == nil {
		return
	}

	// An advisory upload failure still ends in done, but nothing reached the
	// remote store, so it is reported as a failure.
	status := notify.Status{
		Success:   report.State == StateDone && report.UploadErr == nil,
		Operation: op,
		Duration:  report.Duration,
		Err:       report.Err,
		Details:   map[string]string{"Backend": b.gateway.Name()},
	}
	if status.Err == nil {
		status.Err = report.UploadErr
	}
	if report.Artifact != nil {
		status.File = report.Artifact.Filename
		status.SizeBytes = report.Artifact.SizeBytes
	}
	if report.UploadErr != nil {
		status.Details["Upload"] = "failed: " + report.UploadErr.Error()
	}
	if report.Prune != nil {
		status.Details["Pruned"] = strconv.Itoa(report.Prune.Deleted)
	}

	// A cancelled job context must not suppress the outcome notification.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := b.notifier.Notify(notifyCtx, status); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to send notification")
	}
}
