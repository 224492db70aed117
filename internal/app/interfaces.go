package app

import (
	"context"
	"time"

	"github.com/d4rkfella/db-backup/internal/pkg/dump"
	"github.com/d4rkfella/db-backup/internal/pkg/notify"
	"github.com/d4rkfella/db-backup/internal/pkg/retention"
)

type Dumper interface {
	Produce(ctx context.Context, targetPath string) (*dump.Artifact, error)
}

type Pruner interface {
	PruneOlderThan(ctx context.Context, folderID string, cutoff time.Time) (retention.Result, error)
}

type Notifier interface {
	Notify(ctx context.Context, status notify.Status) error
}

var (
	_ Dumper   = (*dump.Producer)(nil)
	_ Pruner   = (*retention.Pruner)(nil)
	_ Notifier = (*notify.Client)(nil)
)
