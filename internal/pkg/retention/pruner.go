package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/d4rkfella/db-backup/internal/pkg/storage"
)

// Result summarises one pruning pass.
type Result struct {
	Listed  int
	Deleted int
	Skipped int
	Failed  int
	// Truncated is set when the backend reported further pages, meaning older
	// artifacts may remain beyond the one consulted.
	Truncated bool
}

// Pruner deletes remote artifacts older than a cutoff.
type Pruner struct {
	gateway  storage.Gateway
	pageSize int
}

func NewPruner(gateway storage.Gateway, pageSize int) *Pruner {
	return &Pruner{gateway: gateway, pageSize: pageSize}
}

// PruneOlderThan deletes archives in folderID created strictly before cutoff.
// Only the first listing page is consulted. Individual delete failures do not
// stop the batch; they are aggregated into the returned error. Callers treat
// any error as advisory.
func (p *Pruner) PruneOlderThan(ctx context.Context, folderID string, cutoff time.Time) (Result, error) {
	var res Result

	if err := p.gateway.VerifyFolderAccess(ctx, folderID); err != nil {
		return res, fmt.Errorf("skipping retention: %w", err)
	}

	query := storage.ListQuery{
		FolderID:      folderID,
		MimeType:      storage.ArchiveMimeType,
		CreatedBefore: cutoff,
		PageSize:      p.pageSize,
	}
	listing, err := p.gateway.ListObjects(ctx, query)
	if err != nil {
		return res, fmt.Errorf("skipping retention: %w", err)
	}
	objects := listing.Objects
	res.Listed = len(objects)
	res.Truncated = listing.HasMore

	logger := log.With().Str("component", "retention").Str("backend", p.gateway.Name()).Str("folder_id", folderID).Time("cutoff", cutoff).Logger()
	if res.Truncated {
		logger.Warn().Int("page_size", query.Limit()).Msg("Listing has more pages; older artifacts beyond the first are left for later runs")
	}

	var errs *multierror.Error
	for _, obj := range objects {
		if obj.ID == "" {
			res.Skipped++
			logger.Warn().Str("name", obj.Name).Msg("Skipping object without identifier")
			continue
		}
		// Never trust the backend filter alone.
		if obj.CreatedTime.IsZero() || !obj.CreatedTime.Before(cutoff) {
			res.Skipped++
			logger.Warn().Str("object_id", obj.ID).Time("created", obj.CreatedTime).Msg("Skipping object not older than cutoff")
			continue
		}
		if err := p.gateway.DeleteObject(ctx, obj.ID); err != nil {
			res.Failed++
			errs = multierror.Append(errs, err)
			logger.Warn().Err(err).Str("object_id", obj.ID).Msg("Failed to delete old backup")
			continue
		}
		res.Deleted++
		logger.Info().Str("object_id", obj.ID).Str("name", obj.Name).Time("created", obj.CreatedTime).Msg("Deleted old backup")
	}

	return res, errs.ErrorOrNil()
}
