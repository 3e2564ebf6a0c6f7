// Package catalogtest provides an in-memory catalog for tests.
package catalogtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/jfmyers9/orochi/internal/catalog"
)

// Fake is an in-memory catalog.Catalog. Every method call is recorded.
type Fake struct {
	mu sync.Mutex

	// SearchFunc answers Search. Nil returns an empty page.
	SearchFunc func(req catalog.SearchRequest) (catalog.Page, error)

	// Mixes answers Mix lookups by numeric ID or URL.
	Mixes map[int64]catalog.Mix

	// MixTracks holds the tracks each mix hands out.
	MixTracks map[int64][]catalog.Track

	// SkipDenied makes every Skip fail with ErrSkipNotAllowed.
	SkipDenied bool

	// Users maps usernames to passwords accepted by Login.
	Users map[string]string

	// Err, when set, is returned by every call.
	Err error

	calls []string
}

// Calls returns the recorded method calls, e.g. "search keyword jazz 1".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallCount counts recorded calls starting with prefix.
func (f *Fake) CallCount(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *Fake) record(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// Search implements catalog.Catalog
func (f *Fake) Search(ctx context.Context, req catalog.SearchRequest) (catalog.Page, error) {
	f.record("search %s %s %d", req.Kind, req.Query, req.Page)
	if f.Err != nil {
		return catalog.Page{}, f.Err
	}
	if f.SearchFunc == nil {
		return catalog.Page{}, nil
	}
	return f.SearchFunc(req)
}

// Mix implements catalog.Catalog
func (f *Fake) Mix(ctx context.Context, ref string) (catalog.Mix, error) {
	f.record("mix %s", ref)
	if f.Err != nil {
		return catalog.Mix{}, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if mix, ok := f.Mixes[id]; ok {
			return mix, nil
		}
	}
	for _, mix := range f.Mixes {
		if mix.URL != "" && strings.HasSuffix(ref, mix.URL) {
			return mix, nil
		}
	}
	return catalog.Mix{}, fmt.Errorf("mix %s: %w", ref, catalog.ErrNotFound)
}

// Login implements catalog.Catalog
func (f *Fake) Login(ctx context.Context, username, password string) (catalog.Session, error) {
	f.record("login %s", username)
	if f.Err != nil {
		return catalog.Session{}, f.Err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.Users[username]; !ok || pw != password {
		return catalog.Session{}, fmt.Errorf("login: %w", catalog.ErrAuth)
	}
	return catalog.Session{Token: "token-" + username, Username: username}, nil
}

// Tracks implements catalog.Catalog
func (f *Fake) Tracks(mixID int64) catalog.TrackSequence {
	f.record("tracks %d", mixID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return &Sequence{
		tracks:     append([]catalog.Track(nil), f.MixTracks[mixID]...),
		skipDenied: f.SkipDenied,
	}
}

// ReportTrack implements catalog.Catalog
func (f *Fake) ReportTrack(ctx context.Context, mixID, trackID int64) error {
	f.record("report %d %d", mixID, trackID)
	return f.Err
}

// LikeMix implements catalog.Catalog
func (f *Fake) LikeMix(ctx context.Context, token string, mixID int64) error {
	f.record("like %d", mixID)
	return f.Err
}

// UnlikeMix implements catalog.Catalog
func (f *Fake) UnlikeMix(ctx context.Context, token string, mixID int64) error {
	f.record("unlike %d", mixID)
	return f.Err
}

// FavTrack implements catalog.Catalog
func (f *Fake) FavTrack(ctx context.Context, token string, trackID int64) error {
	f.record("fav %d", trackID)
	return f.Err
}

// UnfavTrack implements catalog.Catalog
func (f *Fake) UnfavTrack(ctx context.Context, token string, trackID int64) error {
	f.record("unfav %d", trackID)
	return f.Err
}

// Sequence is a slice backed catalog.TrackSequence
type Sequence struct {
	mu         sync.Mutex
	tracks     []catalog.Track
	pos        int
	skipDenied bool
}

// NewSequence returns a sequence over tracks
func NewSequence(tracks ...catalog.Track) *Sequence {
	return &Sequence{tracks: tracks}
}

// Next implements catalog.TrackSequence
func (s *Sequence) Next(ctx context.Context) (catalog.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.tracks) {
		return catalog.Track{}, catalog.ErrExhausted
	}
	t := s.tracks[s.pos]
	s.pos++
	return t, nil
}

// Skip implements catalog.TrackSequence
func (s *Sequence) Skip(ctx context.Context) (catalog.Track, error) {
	s.mu.Lock()
	denied := s.skipDenied && s.pos > 0
	s.mu.Unlock()
	if denied {
		return catalog.Track{}, catalog.ErrSkipNotAllowed
	}
	return s.Next(ctx)
}

// Pages builds a SearchFunc serving fixed pages of mixes. Page n of the
// request is pages[n-1]; HasMore is set for every page but the last.
func Pages(pages ...[]catalog.Mix) func(req catalog.SearchRequest) (catalog.Page, error) {
	return func(req catalog.SearchRequest) (catalog.Page, error) {
		i := req.Page - 1
		if i < 0 || i >= len(pages) {
			return catalog.Page{}, nil
		}
		return catalog.Page{Mixes: pages[i], HasMore: i < len(pages)-1}, nil
	}
}

// MixRange returns mixes with IDs first..first+n-1
func MixRange(first int64, n int) []catalog.Mix {
	mixes := make([]catalog.Mix, 0, n)
	for i := 0; i < n; i++ {
		id := first + int64(i)
		mixes = append(mixes, catalog.Mix{
			ID:         id,
			Name:       fmt.Sprintf("Mix %d", id),
			TrackCount: 8,
			URL:        fmt.Sprintf("/dj/mix-%d", id),
		})
	}
	return mixes
}
