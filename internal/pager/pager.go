package pager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/rs/zerolog"
)

// DefaultPerPage is used when no page size is configured
const DefaultPerPage = 10

// ErrNotFound is returned when a search has no results on its first page
var ErrNotFound = errors.New("no mixes found")

// SelectionError reports a play argument that does not name a mix
type SelectionError struct {
	Token  string
	Reason string
}

// Error returns the error message
func (e *SelectionError) Error() string {
	if e.Token == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid selection %q: %s", e.Token, e.Reason)
}

// Query identifies a search
type Query struct {
	Kind  catalog.SearchKind
	Terms string // Keyword, tag list or user login
	Sort  string
	Token string // User token, needed for liked mixes
}

// State is a snapshot of the current search
type State struct {
	Query
	Page    int
	PerPage int // page size the search was started with
	Results []catalog.Mix
	HasMore bool
}

// Pager holds the current search and moves through its pages
type Pager struct {
	catalog catalog.Catalog
	perPage int
	logger  zerolog.Logger

	state  State
	active bool // a search with results exists
}

// New creates a Pager
func New(cat catalog.Catalog, perPage int, logger zerolog.Logger) *Pager {
	p := &Pager{
		catalog: cat,
		logger:  logger.With().Str("component", "pager").Logger(),
	}
	p.SetPerPage(perPage)
	return p
}

// SetPerPage changes the page size used by the next search. The current
// search keeps paging with the size it was started with.
func (p *Pager) SetPerPage(n int) {
	if n <= 0 {
		n = DefaultPerPage
	}
	p.perPage = n
}

// State returns a copy of the current search state and whether a search exists
func (p *Pager) State() (State, bool) {
	s := p.state
	s.Results = append([]catalog.Mix(nil), p.state.Results...)
	return s, p.active
}

// Search starts a new search and loads its first page.
//
// On a transport failure the previous search is kept. A search without
// results clears the state and returns ErrNotFound.
func (p *Pager) Search(ctx context.Context, q Query) error {
	perPage := p.perPage
	page, err := p.fetch(ctx, q, 1, perPage)
	if err != nil {
		return err
	}

	if len(page.Mixes) == 0 {
		p.state = State{}
		p.active = false
		return fmt.Errorf("%s search %q: %w", q.Kind, q.Terms, ErrNotFound)
	}

	p.state = State{
		Query:   q,
		Page:    1,
		PerPage: perPage,
		Results: page.Mixes,
		HasMore: page.HasMore,
	}
	p.active = true
	return nil
}

// NextPage loads the page after the current one. It returns false without
// touching the state when there is no search or no further page.
func (p *Pager) NextPage(ctx context.Context) (bool, error) {
	if !p.active || !p.state.HasMore {
		return false, nil
	}

	page, err := p.fetch(ctx, p.state.Query, p.state.Page+1, p.state.PerPage)
	if err != nil {
		return false, err
	}
	if len(page.Mixes) == 0 {
		// The catalog promised more but delivered nothing
		p.state.HasMore = false
		return false, nil
	}

	p.state.Page++
	p.state.Results = page.Mixes
	p.state.HasMore = page.HasMore
	return true, nil
}

// Resolve turns a play argument into a mix.
//
// A number is first tried as a 1-based index into the current results.
// Numbers larger than a page are taken as mix IDs, anything containing a
// slash as a mix URL; both are looked up in the catalog.
func (p *Pager) Resolve(ctx context.Context, token string) (catalog.Mix, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return catalog.Mix{}, &SelectionError{Reason: "expected an index, mix ID or URL"}
	}

	if n, err := strconv.Atoi(token); err == nil {
		perPage := p.perPage
		if p.active {
			perPage = p.state.PerPage
		}
		switch {
		case p.active && n >= 1 && n <= len(p.state.Results):
			return p.state.Results[n-1], nil
		case n > perPage:
			return p.lookup(ctx, token)
		case !p.active:
			return catalog.Mix{}, &SelectionError{Token: token, Reason: "no search results to pick from"}
		default:
			return catalog.Mix{}, &SelectionError{
				Token:  token,
				Reason: fmt.Sprintf("index out of range 1-%d", len(p.state.Results)),
			}
		}
	}

	if strings.Contains(token, "/") {
		return p.lookup(ctx, token)
	}
	return catalog.Mix{}, &SelectionError{Token: token, Reason: "expected an index, mix ID or URL"}
}

// After returns the mix following mix in the current results, loading the
// next page when mix is the last of its page. A mix that is not part of the
// results continues from the first result.
func (p *Pager) After(ctx context.Context, mix catalog.Mix) (catalog.Mix, error) {
	if !p.active {
		return catalog.Mix{}, &SelectionError{Reason: "no search to pick the next mix from"}
	}

	idx := -1
	for i, m := range p.state.Results {
		if m.ID == mix.ID {
			idx = i
			break
		}
	}

	switch {
	case idx < 0:
		return p.state.Results[0], nil
	case idx+1 < len(p.state.Results):
		return p.state.Results[idx+1], nil
	}

	advanced, err := p.NextPage(ctx)
	if err != nil {
		return catalog.Mix{}, err
	}
	if !advanced {
		return catalog.Mix{}, &SelectionError{Reason: "no more mixes in this search"}
	}
	return p.state.Results[0], nil
}

func (p *Pager) fetch(ctx context.Context, q Query, page, perPage int) (catalog.Page, error) {
	result, err := p.catalog.Search(ctx, catalog.SearchRequest{
		Kind:    q.Kind,
		Query:   q.Terms,
		Sort:    q.Sort,
		Page:    page,
		PerPage: perPage,
		Token:   q.Token,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("kind", q.Kind.String()).Int("page", page).Msg("Search failed")
		return catalog.Page{}, fmt.Errorf("failed to load page %d: %w", page, err)
	}

	p.logger.Debug().
		Str("kind", q.Kind.String()).
		Str("query", q.Terms).
		Int("page", page).
		Int("results", len(result.Mixes)).
		Bool("has_more", result.HasMore).
		Msg("Page loaded")
	return result, nil
}

func (p *Pager) lookup(ctx context.Context, ref string) (catalog.Mix, error) {
	mix, err := p.catalog.Mix(ctx, ref)
	if err != nil {
		return catalog.Mix{}, fmt.Errorf("failed to look up mix %s: %w", ref, err)
	}
	return mix, nil
}
