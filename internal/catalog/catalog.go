package catalog

import (
	"context"
	"fmt"
	"time"
)

// Mix represents a playlist in the remote catalog
type Mix struct {
	ID          int64         // Catalog mix ID
	Name        string        // Mix title
	Description string        // Free-form description by the creator
	TrackCount  int           // Number of tracks in the mix
	PlayCount   int           // Number of plays
	LikesCount  int           // Number of likes
	Duration    time.Duration // Total duration
	Creator     string        // Login of the user who made the mix
	URL         string        // Web path of the mix, e.g. "/dj/late-night"
	Tags        []string      // Tag list
	Liked       bool          // Liked by the logged in user
}

// Track represents a single playable track handed out for a mix
type Track struct {
	ID        int64         // Catalog track ID
	Name      string        // Track title
	Artist    string        // Performer (may be empty)
	Album     string        // Release name (may be empty)
	Duration  time.Duration // Play duration as reported by the catalog
	StreamURL string        // URL the player streams from
	Faved     bool          // Faved by the logged in user
}

// String formats the track as "Artist - Name"
func (t Track) String() string {
	if t.Artist == "" {
		return t.Name
	}
	return fmt.Sprintf("%s - %s", t.Artist, t.Name)
}

// SearchKind selects which listing a search is run against
type SearchKind int

const (
	KindKeyword   SearchKind = iota // Free text search
	KindTag                         // Search by tags
	KindUser                        // Mixes made by a user
	KindUserLiked                   // Mixes liked by a user
)

// String returns a human-readable representation of the SearchKind
func (k SearchKind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindTag:
		return "tag"
	case KindUser:
		return "user"
	case KindUserLiked:
		return "user_liked"
	default:
		return "unknown"
	}
}

// SearchRequest describes one page of a search
type SearchRequest struct {
	Kind    SearchKind
	Query   string // Keyword, comma separated tags or user login
	Sort    string // hot, recent or popular
	Page    int    // 1-based page number
	PerPage int    // Results per page
	Token   string // User token, required for KindUserLiked
}

// Page is one page of search results
type Page struct {
	Mixes   []Mix
	HasMore bool
}

// Session is the result of a successful login
type Session struct {
	Token    string
	Username string
	UserID   int64
}

// Catalog is the remote mix catalog consumed by the client
type Catalog interface {
	// Search returns one page of mixes for the request
	Search(ctx context.Context, req SearchRequest) (Page, error)

	// Mix looks up a single mix by numeric ID or by web URL/path
	Mix(ctx context.Context, ref string) (Mix, error)

	// Login exchanges credentials for a session token
	Login(ctx context.Context, username, password string) (Session, error)

	// Tracks opens the lazy track sequence of a mix
	Tracks(mixID int64) TrackSequence

	// ReportTrack records a performance of a track in a mix
	ReportTrack(ctx context.Context, mixID, trackID int64) error

	// LikeMix and UnlikeMix toggle the like of a mix for the token's user
	LikeMix(ctx context.Context, token string, mixID int64) error
	UnlikeMix(ctx context.Context, token string, mixID int64) error

	// FavTrack and UnfavTrack toggle the favorite of a track for the token's user
	FavTrack(ctx context.Context, token string, trackID int64) error
	UnfavTrack(ctx context.Context, token string, trackID int64) error
}

// TrackSequence hands out the tracks of one mix session, one at a time.
//
// A sequence is single-pass and cannot be restarted: the catalog issues one
// playable URL at a time and offers no way back to a previous track. The
// first call to either method yields the first track. Once the catalog
// reports the end of the mix, every further call returns ErrExhausted.
type TrackSequence interface {
	// Next yields the track following one that played to its end
	Next(ctx context.Context) (Track, error)

	// Skip yields the track following one the user skipped.
	// Returns ErrSkipNotAllowed when the catalog refuses the skip.
	Skip(ctx context.Context) (Track, error)
}
