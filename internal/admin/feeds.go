// Package admin holds the moderation review queue: one feed per bench
// status, loaded incrementally with a creation-time cursor.
package admin

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/benchradar/benchradar/internal/model"
)

// Fetcher loads one page of rows for a status. Implemented by the
// repository layer.
type Fetcher interface {
	FetchBenches(ctx context.Context, status model.BenchStatus, limit int, before *time.Time) ([]model.AdminRow, error)
}

// Feed is the review queue state for one moderation status.
type Feed struct {
	Rows        []model.AdminRow
	Loading     bool
	LoadingMore bool
	Initialized bool
	EndReached  bool
	Error       string

	// cursor is the created_at of the last row; the next page fetches
	// strictly older rows.
	cursor *time.Time
}

// Statuses are the review tabs, in display order.
var Statuses = []model.BenchStatus{
	model.BenchStatusPending,
	model.BenchStatusRejected,
	model.BenchStatusApproved,
}

// Feeds manages the three per-status review feeds. Loads are idempotent:
// a feed that is already loading, loading more, or exhausted ignores
// further load calls.
type Feeds struct {
	fetcher  Fetcher
	pageSize int

	mu      sync.Mutex
	feeds   map[model.BenchStatus]*Feed
	active  model.BenchStatus
	subs    map[int]func()
	nextSub int
}

// NewFeeds creates the feed manager with a fixed page size.
func NewFeeds(fetcher Fetcher, pageSize int) *Feeds {
	feeds := map[model.BenchStatus]*Feed{}
	for _, s := range Statuses {
		feeds[s] = &Feed{}
	}
	return &Feeds{
		fetcher:  fetcher,
		pageSize: pageSize,
		feeds:    feeds,
		active:   model.BenchStatusPending,
		subs:     map[int]func(){},
	}
}

// Subscribe registers fn to run after every feed change. The returned
// function unsubscribes.
func (f *Feeds) Subscribe(fn func()) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Feeds) notify() {
	f.mu.Lock()
	subs := make([]func(), 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s()
	}
}

// Feed returns a snapshot of one status feed.
func (f *Feeds) Feed(status model.BenchStatus) Feed {
	f.mu.Lock()
	defer f.mu.Unlock()
	fd := f.feeds[status]
	snap := *fd
	snap.Rows = append([]model.AdminRow(nil), fd.Rows...)
	return snap
}

// Init eagerly loads the pending feed, called once for admins on start.
func (f *Feeds) Init(ctx context.Context) {
	f.Load(ctx, model.BenchStatusPending)
}

// Activate makes a tab current and lazily loads its feed the first time.
func (f *Feeds) Activate(ctx context.Context, status model.BenchStatus) {
	f.mu.Lock()
	f.active = status
	initialized := f.feeds[status].Initialized
	f.mu.Unlock()
	if !initialized {
		f.Load(ctx, status)
	}
}

// Active returns the current tab's status.
func (f *Feeds) Active() model.BenchStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Load fetches the first page for a status. It is a no-op when the feed
// is already loading, loading more, or exhausted.
func (f *Feeds) Load(ctx context.Context, status model.BenchStatus) {
	f.mu.Lock()
	fd := f.feeds[status]
	if fd.Loading || fd.LoadingMore || fd.EndReached {
		f.mu.Unlock()
		return
	}
	fd.Loading = true
	fd.Error = ""
	f.mu.Unlock()
	f.notify()

	rows, err := f.fetcher.FetchBenches(ctx, status, f.pageSize, nil)

	f.mu.Lock()
	fd.Loading = false
	if err != nil {
		fd.Error = err.Error()
		f.mu.Unlock()
		f.notify()
		zap.L().Error("admin: feed load failed", zap.String("status", string(status)), zap.Error(err))
		return
	}
	fd.Rows = rows
	fd.Initialized = true
	f.finishPageLocked(fd, rows)
	f.mu.Unlock()
	f.notify()
}

// LoadMore fetches the next page for a status using the cursor, under
// the same idempotency guard as Load.
func (f *Feeds) LoadMore(ctx context.Context, status model.BenchStatus) {
	f.mu.Lock()
	fd := f.feeds[status]
	if !fd.Initialized || fd.Loading || fd.LoadingMore || fd.EndReached {
		f.mu.Unlock()
		return
	}
	fd.LoadingMore = true
	cursor := fd.cursor
	f.mu.Unlock()
	f.notify()

	rows, err := f.fetcher.FetchBenches(ctx, status, f.pageSize, cursor)

	f.mu.Lock()
	fd.LoadingMore = false
	if err != nil {
		fd.Error = err.Error()
		f.mu.Unlock()
		f.notify()
		zap.L().Error("admin: feed load-more failed", zap.String("status", string(status)), zap.Error(err))
		return
	}
	fd.Rows = append(fd.Rows, rows...)
	f.finishPageLocked(fd, rows)
	f.mu.Unlock()
	f.notify()
}

// finishPageLocked advances the cursor and marks exhaustion when the
// page came back short.
func (f *Feeds) finishPageLocked(fd *Feed, page []model.AdminRow) {
	if len(page) > 0 {
		last := page[len(page)-1].CreatedAt
		fd.cursor = &last
	}
	if len(page) < f.pageSize {
		fd.EndReached = true
	}
}

// SentinelVisible is called when the infinite-scroll sentinel enters the
// viewport; it loads more rows for the active tab.
func (f *Feeds) SentinelVisible(ctx context.Context) {
	f.LoadMore(ctx, f.Active())
}

// Remove purges a bench from every feed.
func (f *Feeds) Remove(benchID string) {
	f.mu.Lock()
	for _, fd := range f.feeds {
		kept := fd.Rows[:0:0]
		for _, r := range fd.Rows {
			if r.Bench.ID != benchID {
				kept = append(kept, r)
			}
		}
		fd.Rows = kept
	}
	f.mu.Unlock()
	f.notify()
}

// Patch updates a bench's fields in whichever feeds contain it.
func (f *Feeds) Patch(bench model.Bench) {
	f.mu.Lock()
	for _, fd := range f.feeds {
		for i := range fd.Rows {
			if fd.Rows[i].Bench.ID == bench.ID {
				fd.Rows[i].Bench = bench
			}
		}
	}
	f.mu.Unlock()
	f.notify()
}

// Prepend inserts a newly created bench at the top of a feed, only when
// that feed has already been initialized. It never triggers a fetch.
func (f *Feeds) Prepend(status model.BenchStatus, row model.AdminRow) {
	f.mu.Lock()
	fd := f.feeds[status]
	if fd.Initialized {
		fd.Rows = append([]model.AdminRow{row}, fd.Rows...)
	}
	f.mu.Unlock()
	f.notify()
}
