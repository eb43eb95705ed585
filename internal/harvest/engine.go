package harvest

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solidarity-tools/harvest-cli/internal/catalog"
	"github.com/solidarity-tools/harvest-cli/internal/extract"
	"github.com/solidarity-tools/harvest-cli/internal/model"
	"github.com/solidarity-tools/harvest-cli/internal/resilience"
	"github.com/solidarity-tools/harvest-cli/internal/store"
)

// Catalog is the slice of the listing client the engine drives.
type Catalog interface {
	SearchPage(ctx context.Context, offset, size int) ([]catalog.Item, error)
	FetchDetail(ctx context.Context, opid string) ([]byte, error)
	DetailURL(opid string) string
}

// Options bound one harvest run.
type Options struct {
	Workers     int
	PageSize    int
	MaxPages    int
	StartOffset int
	// Deadline stops admission of new items once elapsed. Items already
	// dispatched drain to completion or failure.
	Deadline time.Duration
}

// Engine coordinates one harvest run: it walks listing pages, dispatches
// discovered items to a bounded worker pool, and commits extracted records.
type Engine struct {
	catalog   Catalog
	extractor *extract.Extractor
	store     store.Store
	opts      Options
}

// NewEngine creates an engine. A non-positive worker count falls back to 15.
func NewEngine(cat Catalog, ex *extract.Extractor, st store.Store, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 15
	}
	return &Engine{catalog: cat, extractor: ex, store: st, opts: opts}
}

// Run executes one harvest. The returned session carries final accounting
// even when the run aborts; the session record is finalized before any
// error surfaces.
func (e *Engine) Run(ctx context.Context) (*model.HarvestSession, error) {
	log := zap.L().With(zap.String("component", "harvest.engine"))

	if err := e.store.Ping(ctx); err != nil {
		return nil, eris.Wrap(err, "harvest: store unreachable")
	}

	tracker, err := StartSession(ctx, e.store)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("session_id", tracker.SessionID()))
	log.Info("starting harvest run",
		zap.Int("workers", e.opts.Workers),
		zap.Int("page_size", e.opts.PageSize),
		zap.Duration("deadline", e.opts.Deadline),
	)
	start := time.Now()

	var deadlineAt time.Time
	if e.opts.Deadline > 0 {
		deadlineAt = start.Add(e.opts.Deadline)
	}
	expired := func() bool {
		return !deadlineAt.IsZero() && time.Now().After(deadlineAt)
	}

	walker := catalog.NewWalker(e.catalog, catalog.WalkerOptions{
		PageSize:    e.opts.PageSize,
		MaxPages:    e.opts.MaxPages,
		StartOffset: e.opts.StartOffset,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	seen := make(map[string]struct{})
	var runErr error

admission:
	for {
		if expired() {
			log.Warn("deadline reached, draining in-flight items")
			break
		}
		if gctx.Err() != nil {
			break // a worker failed fatally, stop admitting
		}

		items, err := walker.Next(ctx)
		if err != nil {
			runErr = eris.Wrap(err, "harvest: listing walk")
			break
		}
		if len(items) == 0 {
			break
		}
		log.Debug("listing page fetched",
			zap.Int("items", len(items)),
			zap.Int("next_offset", walker.Offset()),
		)

		for _, item := range items {
			if _, dup := seen[item.Opid]; dup {
				continue
			}
			seen[item.Opid] = struct{}{}

			if expired() {
				log.Warn("deadline reached, draining in-flight items")
				break admission
			}
			tracker.AddFound(1)
			item := item
			g.Go(func() error {
				return e.processItem(gctx, tracker, item)
			})
		}
	}

	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = eris.Wrap(ctx.Err(), "harvest: run canceled")
	}

	// The session must finalize even when the run context was canceled, so
	// finalization gets its own context.
	finCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := tracker.Finalize(finCtx, runErr == nil); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			log.Error("session finalize failed", zap.Error(err))
		}
	}

	sess := tracker.Snapshot()
	log.Info("harvest run complete",
		zap.Int("total_found", sess.TotalFound),
		zap.Int("successful", sess.Successful),
		zap.Int("failed", sess.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return sess, runErr
}

func (e *Engine) processItem(ctx context.Context, tracker *Tracker, item catalog.Item) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	body, err := e.catalog.FetchDetail(ctx, item.Opid)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return eris.Wrapf(err, "harvest: connectivity lost at item %s", item.Opid)
		}
		tracker.RecordFailure(item.Opid, err)
		zap.L().Warn("detail fetch failed",
			zap.String("opid", item.Opid),
			zap.Error(err))
		return nil // one item's failure never aborts the run
	}

	opp, err := e.extractor.Extract(item.Opid, e.catalog.DetailURL(item.Opid), item.Title, bytes.NewReader(body))
	if err != nil {
		tracker.RecordFailure(item.Opid, err)
		zap.L().Warn("extraction failed",
			zap.String("opid", item.Opid),
			zap.Error(err))
		return nil
	}

	// A failing store is run trouble, not an item defect.
	if err := e.store.UpsertOpportunity(ctx, opp); err != nil {
		return eris.Wrapf(err, "harvest: persist item %s", item.Opid)
	}

	tracker.RecordSuccess()
	zap.L().Debug("item committed",
		zap.String("opid", item.Opid),
		zap.String("title", opp.Title))
	return nil
}
