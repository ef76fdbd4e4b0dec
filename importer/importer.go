// Package importer runs the feed-to-database pipeline: page through the
// feed, normalize each record, skip what already exists, insert the rest.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"har_importer/feed"
	"har_importer/models"
	"har_importer/normalize"
	"har_importer/storage"
)

// Feed is the page source. Satisfied by *feed.Client.
type Feed interface {
	FetchPage(ctx context.Context, nextLink string, top int) (*feed.Page, error)
}

// Store is the listings database. Satisfied by *storage.PostgresStore.
type Store interface {
	GetOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error)
	ListingExists(ctx context.Context, externalID string) (bool, error)
	CreateListing(ctx context.Context, l *models.Listing) error
}

// Ops is the run-history recorder. Optional; a nil Ops disables history.
type Ops interface {
	CreateRun(run *models.ImportRun) (int64, error)
	UpdateRun(run *models.ImportRun) error
	Log(runID *int64, level models.LogLevel, message string) error
}

// Summary is the outcome of one run. Every fetched record lands in
// exactly one of the three counters.
type Summary struct {
	Imported int
	Skipped  int
	Errored  int
	Batches  int
}

func (s Summary) String() string {
	return fmt.Sprintf("imported=%d skipped=%d errored=%d batches=%d",
		s.Imported, s.Skipped, s.Errored, s.Batches)
}

type Importer struct {
	feed      Feed
	store     Store
	ops       Ops
	ownerID   uuid.UUID
	pageSize  int
	pageDelay time.Duration
	logger    *log.Logger
}

type Options struct {
	OwnerID   uuid.UUID
	PageSize  int
	PageDelay time.Duration
	Logger    *log.Logger
}

func New(f Feed, store Store, ops Ops, opts Options) *Importer {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Importer{
		feed:      f,
		store:     store,
		ops:       ops,
		ownerID:   opts.OwnerID,
		pageSize:  opts.PageSize,
		pageDelay: opts.PageDelay,
		logger:    opts.Logger,
	}
}

// Run executes one import. maxRecords caps imported listings across pages
// (0 means unbounded). A record that fails never aborts the run; feed
// errors and a missing owner account do.
func (imp *Importer) Run(ctx context.Context, maxRecords int, trigger string) (*Summary, error) {
	owner, err := imp.store.GetOwner(ctx, imp.ownerID)
	if err != nil {
		return nil, fmt.Errorf("verify import user: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("import user %s not found", imp.ownerID)
	}
	imp.logger.Printf("importing as %s (%s)", owner.Email, owner.ID)

	run := &models.ImportRun{
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
		Trigger:   trigger,
	}
	var runID *int64
	if imp.ops != nil {
		if id, err := imp.ops.CreateRun(run); err != nil {
			imp.logger.Printf("run history unavailable: %v", err)
		} else {
			run.ID = id
			runID = &id
		}
	}

	summary, runErr := imp.runPages(ctx, maxRecords, runID)

	run.Imported = summary.Imported
	run.Skipped = summary.Skipped
	run.Errored = summary.Errored
	run.Batches = summary.Batches
	now := time.Now()
	run.FinishedAt = &now
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	} else {
		run.Status = models.RunStatusCompleted
	}
	if imp.ops != nil && runID != nil {
		if err := imp.ops.UpdateRun(run); err != nil {
			imp.logger.Printf("update run history: %v", err)
		}
	}

	// The summary is reported even when the run fails partway: listings
	// imported before the failure are committed and stay imported.
	imp.logger.Printf("import finished: %s", summary)
	if runErr != nil {
		return summary, runErr
	}
	return summary, nil
}

// runPages drives pagination. The budget counts imports, not fetches:
// skipped duplicates never consume it, so a re-run over a mostly-imported
// feed still reaches the new listings.
func (imp *Importer) runPages(ctx context.Context, maxRecords int, runID *int64) (*Summary, error) {
	summary := &Summary{}
	nextLink := ""

	for {
		page, err := imp.feed.FetchPage(ctx, nextLink, imp.pageSize)
		if err != nil {
			imp.opsLog(runID, models.LogLevelError, fmt.Sprintf("fetch page %d: %v", summary.Batches+1, err))
			return summary, err
		}
		summary.Batches++
		if len(page.Records) == 0 {
			return summary, nil
		}
		imp.logger.Printf("batch %d: %d records", summary.Batches, len(page.Records))

		for i := range page.Records {
			if maxRecords > 0 && summary.Imported >= maxRecords {
				imp.logger.Printf("import budget %d reached", maxRecords)
				return summary, nil
			}
			imp.processRecord(ctx, &page.Records[i], summary, runID)
		}

		if maxRecords > 0 && summary.Imported >= maxRecords {
			imp.logger.Printf("import budget %d reached", maxRecords)
			return summary, nil
		}
		if page.NextLink == "" {
			return summary, nil
		}
		nextLink = page.NextLink

		if imp.pageDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(imp.pageDelay):
			}
		}
	}
}

func (imp *Importer) processRecord(ctx context.Context, rec *models.FeedListing, summary *Summary, runID *int64) {
	listing, err := normalize.Normalize(rec, imp.ownerID)
	if err != nil {
		summary.Errored++
		imp.opsLog(runID, models.LogLevelWarn, fmt.Sprintf("normalize: %v", err))
		return
	}

	exists, err := imp.store.ListingExists(ctx, listing.ExternalID)
	if err != nil {
		summary.Errored++
		imp.opsLog(runID, models.LogLevelError, fmt.Sprintf("check %s: %v", listing.ExternalID, err))
		return
	}
	if exists {
		summary.Skipped++
		return
	}

	if err := imp.store.CreateListing(ctx, listing); err != nil {
		// A concurrent run may have inserted the same listing between
		// the existence check and the insert. That is a skip.
		if errors.Is(err, storage.ErrDuplicateListing) {
			summary.Skipped++
			return
		}
		summary.Errored++
		imp.opsLog(runID, models.LogLevelError, fmt.Sprintf("insert %s: %v", listing.ExternalID, err))
		return
	}

	summary.Imported++
	imp.logger.Printf("imported %s (%s, %s)", listing.ExternalID, listing.City, listing.ListKind)
}

func (imp *Importer) opsLog(runID *int64, level models.LogLevel, message string) {
	imp.logger.Printf("[%s] %s", level, message)
	if imp.ops == nil {
		return
	}
	if err := imp.ops.Log(runID, level, message); err != nil {
		imp.logger.Printf("write run log: %v", err)
	}
}
