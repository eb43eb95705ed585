package catalog

import (
	"context"

	"go.uber.org/zap"
)

// pageFetcher is the slice of Client the walker needs.
type pageFetcher interface {
	SearchPage(ctx context.Context, offset, size int) ([]Item, error)
}

// WalkerOptions configures a listing walk.
type WalkerOptions struct {
	// PageSize is the window requested per listing call.
	PageSize int

	// MaxPages caps the walk as a guard against a catalog that never
	// returns an empty page. Default: 250.
	MaxPages int

	// StartOffset lets a walk resume mid-catalog.
	StartOffset int
}

// Walker pages through catalog listings lazily: each Next call fetches one
// page. The walk ends at the first empty page or at the page ceiling, after
// which Next keeps returning (nil, nil). A failed Next does not advance the
// walk, so the caller may call Next again to retry the same page.
// Not safe for concurrent use.
type Walker struct {
	fetcher  pageFetcher
	pageSize int
	maxPages int
	offset   int
	pages    int
	done     bool
}

// NewWalker creates a walker over the given client.
func NewWalker(fetcher pageFetcher, opts WalkerOptions) *Walker {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 250
	}
	if opts.StartOffset < 0 {
		opts.StartOffset = 0
	}
	return &Walker{
		fetcher:  fetcher,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
		offset:   opts.StartOffset,
	}
}

// Next returns the next listing page, or (nil, nil) when the walk is over.
func (w *Walker) Next(ctx context.Context) ([]Item, error) {
	if w.done {
		return nil, nil
	}
	if w.pages >= w.maxPages {
		w.done = true
		zap.L().Warn("catalog walk hit page ceiling",
			zap.Int("max_pages", w.maxPages),
			zap.Int("offset", w.offset),
		)
		return nil, nil
	}

	items, err := w.fetcher.SearchPage(ctx, w.offset, w.pageSize)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		w.done = true
		return nil, nil
	}

	w.pages++
	w.offset += w.pageSize
	return items, nil
}

// Offset reports where the next page would start, for resuming a walk.
func (w *Walker) Offset() int {
	return w.offset
}

// Done reports whether the walk has ended.
func (w *Walker) Done() bool {
	return w.done
}
