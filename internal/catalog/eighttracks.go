package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jfmyers9/orochi/pkg/eighttracks"
	"github.com/rs/zerolog"
)

// EightTracks implements Catalog on top of the 8tracks API
type EightTracks struct {
	client *eighttracks.Client
	logger zerolog.Logger
}

// NewEightTracks creates a catalog backed by an 8tracks API client
func NewEightTracks(client *eighttracks.Client, logger zerolog.Logger) *EightTracks {
	return &EightTracks{
		client: client,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// LogAdapter lets the 8tracks SDK write its debug output through zerolog
type LogAdapter struct {
	Logger zerolog.Logger
}

// Debugf implements eighttracks.Logger
func (a LogAdapter) Debugf(format string, args ...interface{}) {
	a.Logger.Debug().Msgf(format, args...)
}

// Search returns one page of mixes for the request
func (c *EightTracks) Search(ctx context.Context, req SearchRequest) (Page, error) {
	var (
		page *eighttracks.MixPage
		err  error
	)

	switch req.Kind {
	case KindKeyword:
		page, err = c.client.Mixes().Search(ctx, eighttracks.SearchOptions{
			Query:   req.Query,
			Sort:    req.Sort,
			Page:    req.Page,
			PerPage: req.PerPage,
		})
	case KindTag:
		page, err = c.client.Mixes().Search(ctx, eighttracks.SearchOptions{
			Tags:    SplitTags(req.Query),
			Sort:    req.Sort,
			Page:    req.Page,
			PerPage: req.PerPage,
		})
	case KindUser, KindUserLiked:
		page, err = c.client.Mixes().ByUser(ctx, req.Query, eighttracks.UserOptions{
			Sort:    req.Sort,
			Page:    req.Page,
			PerPage: req.PerPage,
			Liked:   req.Kind == KindUserLiked,
		}, req.Token)
	default:
		return Page{}, fmt.Errorf("unsupported search kind %d", req.Kind)
	}
	if err != nil {
		return Page{}, classify("search "+req.Kind.String(), err)
	}

	c.logger.Debug().
		Str("kind", req.Kind.String()).
		Str("query", req.Query).
		Int("page", req.Page).
		Int("results", len(page.Mixes)).
		Msg("Search completed")

	mixes := make([]Mix, 0, len(page.Mixes))
	for _, m := range page.Mixes {
		mixes = append(mixes, toMix(m))
	}
	return Page{Mixes: mixes, HasMore: page.HasMore()}, nil
}

// Mix looks up a mix by numeric ID, web URL or path
func (c *EightTracks) Mix(ctx context.Context, ref string) (Mix, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Mix{}, fmt.Errorf("mix lookup: empty reference: %w", ErrNotFound)
	}

	var (
		mix *eighttracks.Mix
		err error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		mix, err = c.client.Mixes().Get(ctx, id)
	} else {
		mix, err = c.client.Mixes().GetByPath(ctx, MixPath(ref))
	}
	if err != nil {
		return Mix{}, classify("mix lookup", err)
	}
	return toMix(*mix), nil
}

// Login exchanges credentials for a session token
func (c *EightTracks) Login(ctx context.Context, username, password string) (Session, error) {
	session, err := c.client.Auth().Login(ctx, username, password)
	if err != nil {
		return Session{}, classify("login", err)
	}

	c.logger.Info().Str("user", session.User.Login).Msg("Logged in")

	return Session{
		Token:    session.UserToken,
		Username: session.User.Login,
		UserID:   session.User.ID,
	}, nil
}

// Tracks opens the track sequence of a mix. No request is made until the
// first track is asked for.
func (c *EightTracks) Tracks(mixID int64) TrackSequence {
	return &setSequence{
		sets:   c.client.Sets(),
		mixID:  mixID,
		logger: c.logger,
	}
}

// ReportTrack records a performance of a track
func (c *EightTracks) ReportTrack(ctx context.Context, mixID, trackID int64) error {
	if err := c.client.Sets().Report(ctx, mixID, trackID); err != nil {
		return classify("report track", err)
	}
	return nil
}

// LikeMix likes a mix
func (c *EightTracks) LikeMix(ctx context.Context, token string, mixID int64) error {
	return classify("like mix", c.client.Mixes().Like(ctx, mixID, token))
}

// UnlikeMix removes the like of a mix
func (c *EightTracks) UnlikeMix(ctx context.Context, token string, mixID int64) error {
	return classify("unlike mix", c.client.Mixes().Unlike(ctx, mixID, token))
}

// FavTrack adds a track to the user's favorites
func (c *EightTracks) FavTrack(ctx context.Context, token string, trackID int64) error {
	return classify("fav track", c.client.Tracks().Fav(ctx, trackID, token))
}

// UnfavTrack removes a track from the user's favorites
func (c *EightTracks) UnfavTrack(ctx context.Context, token string, trackID int64) error {
	return classify("unfav track", c.client.Tracks().Unfav(ctx, trackID, token))
}

// setSequence walks an 8tracks set. It is safe for use by one caller at a
// time; the mutex only guards against a watcher and the command loop
// overlapping.
type setSequence struct {
	sets   *eighttracks.SetService
	mixID  int64
	logger zerolog.Logger

	mu        sync.Mutex
	started   bool
	lastTrack bool // the track handed out last was the final one
	exhausted bool
}

func (s *setSequence) Next(ctx context.Context) (Track, error) {
	return s.advance(ctx, false)
}

func (s *setSequence) Skip(ctx context.Context) (Track, error) {
	return s.advance(ctx, true)
}

func (s *setSequence) advance(ctx context.Context, skip bool) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return Track{}, ErrExhausted
	}
	if s.lastTrack {
		s.exhausted = true
		return Track{}, ErrExhausted
	}

	var (
		set *eighttracks.Set
		err error
		op  string
	)
	switch {
	case !s.started:
		op = "play"
		set, err = s.sets.Play(ctx, s.mixID)
	case skip:
		op = "skip"
		set, err = s.sets.Skip(ctx, s.mixID)
	default:
		op = "next"
		set, err = s.sets.Next(ctx, s.mixID)
	}
	if err != nil {
		var apiErr *eighttracks.Error
		if skip && s.started && errors.As(err, &apiErr) && apiErr.Forbidden() {
			return Track{}, fmt.Errorf("%s mix %d: %w", op, s.mixID, ErrSkipNotAllowed)
		}
		return Track{}, classify(op+" mix "+strconv.FormatInt(s.mixID, 10), err)
	}
	s.started = true

	if set.AtEnd || set.Track == nil || set.Track.URL == "" {
		s.exhausted = true
		s.logger.Debug().Int64("mix_id", s.mixID).Msg("Mix exhausted")
		return Track{}, ErrExhausted
	}
	s.lastTrack = set.AtLastTrack

	return toTrack(*set.Track), nil
}

// SplitTags splits a comma separated tag list and drops empty entries
func SplitTags(query string) []string {
	var tags []string
	for _, t := range strings.Split(query, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// MixPath extracts the mix path from a full URL, e.g.
// "https://8tracks.com/dj/late-night" becomes "/dj/late-night".
func MixPath(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		return u.Path
	}
	return ref
}

// classify maps SDK errors onto the catalog error taxonomy. The original
// error stays in the chain so callers can still inspect it.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var apiErr *eighttracks.Error
	switch {
	case errors.Is(err, eighttracks.ErrNoUserToken):
		return fmt.Errorf("%s: %w: %w", op, ErrAuth, err)
	case errors.As(err, &apiErr) && apiErr.Unauthorized():
		return fmt.Errorf("%s: %w: %w", op, ErrAuth, err)
	case errors.As(err, &apiErr) && apiErr.NotFound():
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
	}
}

func toMix(m eighttracks.Mix) Mix {
	return Mix{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		TrackCount:  m.TracksCount,
		PlayCount:   m.PlaysCount,
		LikesCount:  m.LikesCount,
		Duration:    time.Duration(m.Duration) * time.Second,
		Creator:     m.User.Login,
		URL:         m.Path,
		Tags:        m.Tags(),
		Liked:       m.LikedByCurrentUser,
	}
}

func toTrack(t eighttracks.Track) Track {
	return Track{
		ID:        t.ID,
		Name:      t.Name,
		Artist:    t.Performer,
		Album:     t.ReleaseName,
		Duration:  time.Duration(t.PlayDuration) * time.Second,
		StreamURL: t.URL,
		Faved:     t.FavedByCurrentUser,
	}
}
