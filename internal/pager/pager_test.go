package pager

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/catalog/catalogtest"
	"github.com/rs/zerolog"
)

func newTestPager(t *testing.T, fake *catalogtest.Fake) *Pager {
	t.Helper()
	return New(fake, 10, zerolog.Nop())
}

func keyword(terms string) Query {
	return Query{Kind: catalog.KindKeyword, Terms: terms, Sort: "hot"}
}

func TestSearch(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 10), catalogtest.MixRange(11, 3)),
	}
	p := newTestPager(t, fake)

	if err := p.Search(context.Background(), keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, ok := p.State()
	if !ok {
		t.Fatal("expected an active search")
	}
	if state.Page != 1 || len(state.Results) != 10 || !state.HasMore {
		t.Errorf("unexpected state: page=%d results=%d more=%v", state.Page, len(state.Results), state.HasMore)
	}
	if state.Terms != "jazz" || state.Kind != catalog.KindKeyword {
		t.Errorf("unexpected query: %+v", state.Query)
	}
}

func TestSearch_NoResults(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 3)),
	}
	p := newTestPager(t, fake)
	ctx := context.Background()

	if err := p.Search(ctx, keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fake.SearchFunc = catalogtest.Pages()
	err := p.Search(ctx, Query{Kind: catalog.KindTag, Terms: "rock, 90s"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	state, ok := p.State()
	if ok || len(state.Results) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}

	// Playing by index afterwards is a selection error, not a crash
	var selErr *SelectionError
	if _, err := p.Resolve(ctx, "1"); !errors.As(err, &selErr) {
		t.Errorf("expected SelectionError, got %v", err)
	}
}

func TestSearch_TransportErrorKeepsState(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 5)),
	}
	p := newTestPager(t, fake)
	ctx := context.Background()

	if err := p.Search(ctx, keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fake.Err = fmt.Errorf("dial: %w", catalog.ErrTransport)
	if err := p.Search(ctx, keyword("blues")); !errors.Is(err, catalog.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	state, ok := p.State()
	if !ok || state.Terms != "jazz" || len(state.Results) != 5 {
		t.Errorf("expected previous search to be kept, got %+v", state)
	}
}

func TestNextPage(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 10), catalogtest.MixRange(11, 10), catalogtest.MixRange(21, 2)),
	}
	p := newTestPager(t, fake)
	ctx := context.Background()

	if advanced, err := p.NextPage(ctx); advanced || err != nil {
		t.Errorf("expected no-op without a search, got %v, %v", advanced, err)
	}

	if err := p.Search(ctx, keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for wantPage := 2; wantPage <= 3; wantPage++ {
		advanced, err := p.NextPage(ctx)
		if err != nil || !advanced {
			t.Fatalf("page %d: advanced=%v err=%v", wantPage, advanced, err)
		}
		state, _ := p.State()
		if state.Page != wantPage {
			t.Errorf("expected page %d, got %d", wantPage, state.Page)
		}
	}

	before, _ := p.State()
	calls := fake.CallCount("search")
	for i := 0; i < 3; i++ {
		advanced, err := p.NextPage(ctx)
		if advanced || err != nil {
			t.Errorf("expected no-op on last page, got %v, %v", advanced, err)
		}
	}
	after, _ := p.State()
	if after.Page != before.Page || len(after.Results) != len(before.Results) || after.Results[0].ID != 21 {
		t.Errorf("state changed on last page: before=%+v after=%+v", before, after)
	}
	if fake.CallCount("search") != calls {
		t.Error("expected no catalog calls past the last page")
	}
}

func TestResolve(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 10)),
		Mixes: map[int64]catalog.Mix{
			4242: {ID: 4242, Name: "By ID", URL: "/dj/by-id"},
		},
	}
	p := newTestPager(t, fake)
	ctx := context.Background()

	if err := p.Search(ctx, keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantID  int64
		wantErr bool
	}{
		{"first index", "1", 1, false},
		{"third index", "3", 3, false},
		{"last index", "10", 10, false},
		{"mix id", "4242", 4242, false},
		{"mix url", "https://8tracks.com/dj/by-id", 4242, false},
		{"index zero", "0", 0, true},
		{"negative", "-1", 0, true},
		{"garbage", "abc", 0, true},
		{"empty", "", 0, true},
		{"unknown id", "99999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mix, err := p.Resolve(ctx, tt.token)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got mix %+v", mix)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if mix.ID != tt.wantID {
				t.Errorf("expected mix %d, got %d", tt.wantID, mix.ID)
			}

			// Same token, same state, same mix
			again, err := p.Resolve(ctx, tt.token)
			if err != nil || again.ID != mix.ID {
				t.Errorf("resolve not idempotent: %+v, %v", again, err)
			}
		})
	}
}

func TestResolve_NoSearch(t *testing.T) {
	p := newTestPager(t, &catalogtest.Fake{})

	var selErr *SelectionError
	if _, err := p.Resolve(context.Background(), "3"); !errors.As(err, &selErr) {
		t.Errorf("expected SelectionError, got %v", err)
	}
}

func TestAfter(t *testing.T) {
	fake := &catalogtest.Fake{
		SearchFunc: catalogtest.Pages(catalogtest.MixRange(1, 3), catalogtest.MixRange(4, 2)),
	}
	p := newTestPager(t, fake)
	ctx := context.Background()

	var selErr *SelectionError
	if _, err := p.After(ctx, catalog.Mix{ID: 1}); !errors.As(err, &selErr) {
		t.Errorf("expected SelectionError without a search, got %v", err)
	}

	if err := p.Search(ctx, keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []struct {
		from int64
		want int64
	}{
		{1, 2},
		{2, 3},
		{3, 4}, // crosses into page 2
		{4, 5},
		{99, 4}, // unknown mix restarts at the first result
	}
	for _, s := range steps {
		next, err := p.After(ctx, catalog.Mix{ID: s.from})
		if err != nil {
			t.Fatalf("after %d: %v", s.from, err)
		}
		if next.ID != s.want {
			t.Errorf("after %d: expected %d, got %d", s.from, s.want, next.ID)
		}
	}

	if _, err := p.After(ctx, catalog.Mix{ID: 5}); !errors.As(err, &selErr) {
		t.Errorf("expected SelectionError at the end of the search, got %v", err)
	}
}

// sliced serves mixes in pages of whatever size is requested
func sliced(mixes []catalog.Mix) func(req catalog.SearchRequest) (catalog.Page, error) {
	return func(req catalog.SearchRequest) (catalog.Page, error) {
		start := (req.Page - 1) * req.PerPage
		if start >= len(mixes) {
			return catalog.Page{}, nil
		}
		end := min(start+req.PerPage, len(mixes))
		return catalog.Page{Mixes: mixes[start:end], HasMore: end < len(mixes)}, nil
	}
}

func TestSetPerPage_KeepsCurrentSearch(t *testing.T) {
	fake := &catalogtest.Fake{SearchFunc: sliced(catalogtest.MixRange(1, 100))}
	p := newTestPager(t, fake)
	ctx := context.Background()

	if err := p.Search(ctx, keyword("jazz")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.SetPerPage(20)

	if ok, err := p.NextPage(ctx); !ok || err != nil {
		t.Fatalf("expected a second page, got %v, %v", ok, err)
	}
	state, _ := p.State()
	if first, last := state.Results[0].ID, state.Results[len(state.Results)-1].ID; first != 11 || last != 20 {
		t.Errorf("expected mixes 11-20, got %d-%d", first, last)
	}
	if state.PerPage != 10 {
		t.Errorf("expected the search to keep 10 per page, got %d", state.PerPage)
	}

	// Moving past the page uses the same size
	next, err := p.After(ctx, catalog.Mix{ID: 20})
	if err != nil || next.ID != 21 {
		t.Errorf("expected mix 21 after 20, got %d, %v", next.ID, err)
	}

	// A new search picks up the new size
	if err := p.Search(ctx, keyword("rock")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, _ = p.State()
	if len(state.Results) != 20 || state.PerPage != 20 {
		t.Errorf("expected 20 results per page, got %d (per page %d)", len(state.Results), state.PerPage)
	}
}
