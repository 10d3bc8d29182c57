package pager

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID string
}

func itemKey(i item) string { return i.ID }

type fakeSource struct {
	mu     sync.Mutex
	pages  map[string][][]item
	calls  []int
	filter []string
	fail   map[int]error
}

func (s *fakeSource) fetch(_ context.Context, filter string, page int) (Batch[item], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, page)
	s.filter = append(s.filter, filter)
	if err, ok := s.fail[page]; ok {
		delete(s.fail, page)
		return Batch[item]{}, err
	}
	pages := s.pages[filter]
	if page >= len(pages) {
		return Batch[item]{Number: page, Last: true}, nil
	}
	return Batch[item]{Items: pages[page], Number: page, Last: page == len(pages)-1}, nil
}

func ids(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestLoadMoreAccumulatesAndDeduplicates(t *testing.T) {
	src := &fakeSource{pages: map[string][][]item{
		"": {
			{{ID: "a"}, {ID: "b"}},
			{{ID: "b"}, {ID: "c"}},
			{{ID: "d"}},
		},
	}}
	f := New[item, string](src.fetch, itemKey, "")
	ctx := context.Background()

	assert.Equal(t, StateIdle, f.State())

	for i := 0; i < 3; i++ {
		fetched, err := f.LoadMore(ctx)
		require.NoError(t, err)
		assert.True(t, fetched)
	}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(f.Items()))
	assert.Equal(t, 3, f.Page())
	assert.False(t, f.HasMore())
	assert.Equal(t, StateExhausted, f.State())

	fetched, err := f.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, fetched)
	assert.Equal(t, []int{0, 1, 2}, src.calls)
}

func TestRefreshReplacesItemsAndFilter(t *testing.T) {
	src := &fakeSource{pages: map[string][][]item{
		"":     {{{ID: "a"}}, {{ID: "b"}}},
		"mine": {{{ID: "x"}}},
	}}
	f := New[item, string](src.fetch, itemKey, "")
	ctx := context.Background()

	_, err := f.LoadMore(ctx)
	require.NoError(t, err)
	_, err = f.LoadMore(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(f.Items()))

	filter := "mine"
	require.NoError(t, f.Refresh(ctx, &filter))

	assert.Equal(t, []string{"x"}, ids(f.Items()))
	assert.Equal(t, "mine", f.Filter())
	assert.Equal(t, 1, f.Page())
	assert.Equal(t, StateExhausted, f.State())
	assert.Equal(t, "mine", src.filter[len(src.filter)-1])
}

func TestRefreshFailureEmptiesList(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{
		pages: map[string][][]item{"": {{{ID: "a"}}, {{ID: "b"}}}},
		fail:  map[int]error{},
	}
	f := New[item, string](src.fetch, itemKey, "")
	ctx := context.Background()

	_, err := f.LoadMore(ctx)
	require.NoError(t, err)
	require.Len(t, f.Items(), 1)

	src.fail[0] = boom
	err = f.Refresh(ctx, nil)
	require.ErrorIs(t, err, boom)

	assert.Empty(t, f.Items())
	assert.Equal(t, StateFailed, f.State())
	assert.True(t, f.RefreshFailed())
	assert.ErrorIs(t, f.Err(), boom)

	require.NoError(t, f.Refresh(ctx, nil))
	assert.False(t, f.RefreshFailed())
	assert.Equal(t, []string{"a"}, ids(f.Items()))
}

func TestLoadMoreFailureKeepsItemsAndRetriesPage(t *testing.T) {
	boom := errors.New("boom")
	src := &fakeSource{
		pages: map[string][][]item{"": {{{ID: "a"}}, {{ID: "b"}}}},
		fail:  map[int]error{1: boom},
	}
	f := New[item, string](src.fetch, itemKey, "")
	ctx := context.Background()

	_, err := f.LoadMore(ctx)
	require.NoError(t, err)

	fetched, err := f.LoadMore(ctx)
	require.ErrorIs(t, err, boom)
	assert.False(t, fetched)
	assert.Equal(t, []string{"a"}, ids(f.Items()))
	assert.Equal(t, StateFailed, f.State())
	assert.False(t, f.RefreshFailed())

	fetched, err = f.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, []string{"a", "b"}, ids(f.Items()))
	assert.Equal(t, []int{0, 1, 1}, src.calls)
}

func TestLoadMoreDroppedWhileLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	fetch := func(_ context.Context, _ string, page int) (Batch[item], error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return Batch[item]{Items: []item{{ID: "a"}}, Number: page}, nil
	}
	f := New[item, string](fetch, itemKey, "")

	done := make(chan error, 1)
	go func() {
		_, err := f.LoadMore(context.Background())
		done <- err
	}()
	<-started

	assert.Equal(t, StateLoading, f.State())
	fetched, err := f.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, fetched)

	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"a"}, ids(f.Items()))
}

func TestRefreshDiscardsStaleLoadMore(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	fetch := func(_ context.Context, filter string, page int) (Batch[item], error) {
		if filter == "old" {
			started <- struct{}{}
			<-release
			return Batch[item]{Items: []item{{ID: "stale"}}, Number: page}, nil
		}
		return Batch[item]{Items: []item{{ID: "fresh"}}, Number: page, Last: true}, nil
	}
	f := New[item, string](fetch, itemKey, "old")

	done := make(chan error, 1)
	go func() {
		_, err := f.LoadMore(context.Background())
		done <- err
	}()
	<-started

	filter := "new"
	require.NoError(t, f.Refresh(context.Background(), &filter))
	close(release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, []string{"fresh"}, ids(f.Items()))
	assert.Equal(t, StateExhausted, f.State())
	assert.Equal(t, 1, f.Page())
}

// Random overlapping pages must always yield unique ids in first-seen order.
func TestLoadMoreUniquenessProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		pageCount := rng.Intn(6) + 1
		pages := make([][]item, pageCount)
		for p := range pages {
			n := rng.Intn(5)
			for i := 0; i < n; i++ {
				pages[p] = append(pages[p], item{ID: fmt.Sprintf("id-%d", rng.Intn(12))})
			}
		}

		var want []string
		seen := map[string]bool{}
		total := 0
		for _, page := range pages {
			for _, it := range page {
				total++
				if !seen[it.ID] {
					seen[it.ID] = true
					want = append(want, it.ID)
				}
			}
		}

		src := &fakeSource{pages: map[string][][]item{"": pages}}
		f := New[item, string](src.fetch, itemKey, "")
		for f.HasMore() {
			_, err := f.LoadMore(context.Background())
			require.NoError(t, err)
		}

		got := ids(f.Items())
		assert.Equal(t, want, got, "round %d", round)
		assert.LessOrEqual(t, len(got), total)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "exhausted", StateExhausted.String())
	assert.Equal(t, "unknown", State(99).String())
}
