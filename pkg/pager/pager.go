// Package pager accumulates page-numbered listings for fetch-more UIs.
package pager

import (
	"context"
	"errors"
	"sync"
)

// State is the lifecycle of a Fetcher.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrSuperseded is returned when a Refresh started after this call, so its
// result was dropped.
var ErrSuperseded = errors.New("pager: result superseded by a newer refresh")

// Batch is one page as reported by the server.
type Batch[T any] struct {
	Items  []T
	Number int
	Last   bool
}

// FetchFunc loads page number page for filter.
type FetchFunc[T any, F any] func(ctx context.Context, filter F, page int) (Batch[T], error)

// Fetcher accumulates pages in first-seen order, dropping items whose key
// was already seen. Only one fetch per generation is in flight; Refresh
// starts a new generation and results from older ones are discarded.
type Fetcher[T any, F any] struct {
	fetch FetchFunc[T, F]
	key   func(T) string

	mu            sync.Mutex
	items         []T
	seen          map[string]struct{}
	page          int
	hasMore       bool
	filter        F
	state         State
	err           error
	refreshFailed bool
	generation    uint64
}

// New builds an idle Fetcher starting at page 0.
func New[T any, F any](fetch FetchFunc[T, F], key func(T) string, filter F) *Fetcher[T, F] {
	return &Fetcher[T, F]{
		fetch:   fetch,
		key:     key,
		seen:    make(map[string]struct{}),
		hasMore: true,
		filter:  filter,
		state:   StateIdle,
	}
}

// LoadMore fetches the next page and appends unseen items. It returns false
// without fetching while another fetch is in flight or the list is
// exhausted. On failure the accumulated items are kept and the same page is
// retried by the next call.
func (f *Fetcher[T, F]) LoadMore(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.state == StateLoading || f.state == StateExhausted {
		f.mu.Unlock()
		return false, nil
	}
	gen, page, filter := f.begin()
	f.mu.Unlock()

	batch, err := f.fetch(ctx, filter, page)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return false, ErrSuperseded
	}
	if err != nil {
		f.state = StateFailed
		f.err = err
		return false, err
	}
	f.apply(batch)
	return true, nil
}

// Refresh discards everything, optionally swaps the filter and loads page 0.
// A failed refresh leaves the list empty.
func (f *Fetcher[T, F]) Refresh(ctx context.Context, filter *F) error {
	f.mu.Lock()
	f.generation++
	f.items = nil
	f.seen = make(map[string]struct{})
	f.page = 0
	f.hasMore = true
	f.refreshFailed = false
	if filter != nil {
		f.filter = *filter
	}
	gen, page, snapshot := f.begin()
	f.mu.Unlock()

	batch, err := f.fetch(ctx, snapshot, page)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		return ErrSuperseded
	}
	if err != nil {
		f.state = StateFailed
		f.err = err
		f.refreshFailed = true
		return err
	}
	f.apply(batch)
	return nil
}

// begin marks the fetcher busy. Callers hold mu.
func (f *Fetcher[T, F]) begin() (uint64, int, F) {
	f.state = StateLoading
	f.err = nil
	return f.generation, f.page, f.filter
}

// apply merges a successful batch. Callers hold mu.
func (f *Fetcher[T, F]) apply(batch Batch[T]) {
	for _, item := range batch.Items {
		k := f.key(item)
		if _, dup := f.seen[k]; dup {
			continue
		}
		f.seen[k] = struct{}{}
		f.items = append(f.items, item)
	}
	f.page = batch.Number + 1
	f.hasMore = !batch.Last
	f.refreshFailed = false
	if f.hasMore {
		f.state = StateLoaded
	} else {
		f.state = StateExhausted
	}
}

// Items returns a copy of the accumulated items.
func (f *Fetcher[T, F]) Items() []T {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]T, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Fetcher[T, F]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Fetcher[T, F]) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// Page is the next page index LoadMore will request.
func (f *Fetcher[T, F]) Page() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *Fetcher[T, F]) Filter() F {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

// Err is the error of the last failed fetch, cleared when a fetch starts.
func (f *Fetcher[T, F]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// RefreshFailed reports the "reload failed" state: the last Refresh failed
// and nothing has loaded since.
func (f *Fetcher[T, F]) RefreshFailed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshFailed
}
