package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/player"
	"github.com/rs/zerolog"
)

// MixSource picks the mix to play after another one
type MixSource interface {
	After(ctx context.Context, mix catalog.Mix) (catalog.Mix, error)
}

// Options holds controller configuration
type Options struct {
	Volume         int           // Initial volume, 0-100
	CloseGrace     time.Duration // How long a player gets to quit before it is killed
	StatusInterval time.Duration // How often watchers poll the player position
	ReportAfter    time.Duration // Play time after which a track is reported
	MaxEmptyMixes  int           // Empty mixes skipped before next_mix gives up
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		Volume:         100,
		CloseGrace:     player.DefaultCloseGrace,
		StatusInterval: time.Second,
		ReportAfter:    30 * time.Second, // 8tracks licensing rule
		MaxEmptyMixes:  3,
	}
}

// Controller owns the playback session and the player process behind it.
//
// All transitions hold mu. Watchers never touch the session; they post
// events that the owner of the controller feeds back through HandleEvent.
type Controller struct {
	catalog catalog.Catalog
	player  player.Player
	mixes   MixSource
	opts    Options
	logger  zerolog.Logger
	events  chan Event

	mu      sync.Mutex
	session *session
	volume  int
}

// session is one mix being played. It exists iff the state is not Stopped.
type session struct {
	id     uuid.UUID
	gen    uint64
	mix    catalog.Mix
	seq    catalog.TrackSequence
	track  catalog.Track
	proc   player.Process
	state  State
	cancel context.CancelFunc // stops the current track's watcher
}

// New creates a Controller. mixes may be nil, in which case next_mix has
// nothing to continue with.
func New(cat catalog.Catalog, p player.Player, mixes MixSource, opts Options, logger zerolog.Logger) *Controller {
	def := DefaultOptions()
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = def.CloseGrace
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = def.StatusInterval
	}
	if opts.ReportAfter <= 0 {
		opts.ReportAfter = def.ReportAfter
	}
	if opts.MaxEmptyMixes <= 0 {
		opts.MaxEmptyMixes = def.MaxEmptyMixes
	}
	if opts.Volume < 0 || opts.Volume > 100 {
		opts.Volume = def.Volume
	}

	return &Controller{
		catalog: cat,
		player:  p,
		mixes:   mixes,
		opts:    opts,
		logger:  logger.With().Str("component", "playback").Logger(),
		events:  make(chan Event, 8),
		volume:  opts.Volume,
	}
}

// Events returns the channel watchers post to
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Play starts a new session for mix
func (c *Controller) Play(ctx context.Context, mix catalog.Mix) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return fmt.Errorf("play: %w: already %s", ErrInvalidState, c.session.state)
	}
	return c.playLocked(ctx, mix)
}

func (c *Controller) playLocked(ctx context.Context, mix catalog.Mix) error {
	seq := c.catalog.Tracks(mix.ID)
	track, err := seq.Next(ctx)
	if errors.Is(err, catalog.ErrExhausted) {
		return fmt.Errorf("mix %q: %w", mix.Name, ErrEmptyMix)
	}
	if err != nil {
		return fmt.Errorf("failed to start mix %q: %w", mix.Name, err)
	}

	s := &session{
		id:  uuid.New(),
		mix: mix,
		seq: seq,
	}
	if err := c.startTrack(ctx, s, track); err != nil {
		return err
	}
	c.session = s

	c.logger.Info().
		Str("session", s.id.String()).
		Int64("mix_id", mix.ID).
		Str("mix", mix.Name).
		Msg("Session started")
	return nil
}

// startTrack spawns the player for track and starts its watcher
func (c *Controller) startTrack(ctx context.Context, s *session, track catalog.Track) error {
	if s == nil {
		panic("playback: starting a track without a session")
	}

	proc, err := c.player.Spawn(ctx, track.StreamURL)
	if err != nil {
		return fmt.Errorf("failed to play %q: %w", track.String(), err)
	}
	if err := proc.Send(player.SetVolume(c.volume)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to apply volume")
	}

	s.gen++
	s.track = track
	s.proc = proc
	s.state = StatePlaying

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go c.watch(watchCtx, s.id, s.gen, proc)

	c.logger.Info().
		Int64("track_id", track.ID).
		Str("track", track.String()).
		Uint64("generation", s.gen).
		Msg("Track started")
	return nil
}

// stopTrack cancels the watcher and closes the player of the current track
func (c *Controller) stopTrack(s *session) {
	if s == nil {
		panic("playback: stopping a track without a session")
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.proc != nil {
		if err := s.proc.Close(c.opts.CloseGrace); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to close player")
		}
		s.proc = nil
	}
}

// endSessionLocked tears down the session and returns to Stopped
func (c *Controller) endSessionLocked() {
	s := c.session
	c.stopTrack(s)
	c.session = nil
	c.logger.Info().Str("session", s.id.String()).Msg("Session ended")
}

// requireSession returns the live session or ErrInvalidState
func (c *Controller) requireSession(op string) (*session, error) {
	if c.session == nil {
		return nil, fmt.Errorf("%s: %w: nothing is playing", op, ErrInvalidState)
	}
	return c.session, nil
}

// TogglePause pauses or resumes the current track
func (c *Controller) TogglePause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.requireSession("pause")
	if err != nil {
		return err
	}
	if err := s.proc.Send(player.TogglePause()); err != nil {
		c.endSessionLocked()
		return fmt.Errorf("pause: %w", err)
	}

	if s.state == StatePlaying {
		s.state = StatePaused
	} else {
		s.state = StatePlaying
	}
	return nil
}

// Stop ends the session
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireSession("stop"); err != nil {
		return err
	}
	c.endSessionLocked()
	return nil
}

// Shutdown stops any session. Unlike Stop it is fine to call when stopped.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.endSessionLocked()
	}
}

// NextSong skips to the next track. A mix without further tracks continues
// with the next mix. When the catalog refuses the skip the current track
// keeps playing and ErrSkipNotAllowed is returned.
func (c *Controller) NextSong(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.requireSession("next_song")
	if err != nil {
		return err
	}

	track, err := s.seq.Skip(ctx)
	switch {
	case errors.Is(err, catalog.ErrSkipNotAllowed):
		return fmt.Errorf("next_song: %w", err)
	case errors.Is(err, catalog.ErrExhausted):
		c.logger.Info().Int64("mix_id", s.mix.ID).Msg("Mix finished, moving to next mix")
		return c.nextMixLocked(ctx)
	case err != nil:
		return fmt.Errorf("next_song: %w", err)
	}

	c.stopTrack(s)
	if err := c.startTrack(ctx, s, track); err != nil {
		c.endSessionLocked()
		return err
	}
	return nil
}

// NextMix ends the current mix and plays the one after it
func (c *Controller) NextMix(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.requireSession("next_mix"); err != nil {
		return err
	}
	return c.nextMixLocked(ctx)
}

func (c *Controller) nextMixLocked(ctx context.Context) error {
	current := c.session.mix
	c.endSessionLocked()

	if c.mixes == nil {
		return fmt.Errorf("next_mix: %w: no search to continue from", ErrInvalidState)
	}

	for attempt := 0; attempt < c.opts.MaxEmptyMixes; attempt++ {
		next, err := c.mixes.After(ctx, current)
		if err != nil {
			return fmt.Errorf("next_mix: %w", err)
		}

		err = c.playLocked(ctx, next)
		if !errors.Is(err, ErrEmptyMix) {
			return err
		}
		c.logger.Info().Int64("mix_id", next.ID).Msg("Skipping empty mix")
		current = next
	}
	return fmt.Errorf("next_mix: %w: gave up after %d mixes", ErrEmptyMix, c.opts.MaxEmptyMixes)
}

// SetVolume sets the volume of the current and all following tracks
func (c *Controller) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("volume %d: %w: must be between 0 and 100", v, ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.session; s != nil {
		if err := s.proc.Send(player.SetVolume(v)); err != nil {
			if errors.Is(err, player.ErrPlayerDead) {
				c.endSessionLocked()
			}
			return fmt.Errorf("volume: %w", err)
		}
	}
	c.volume = v
	return nil
}

// HandleEvent applies a watcher event. Events raised for an earlier session
// or an earlier track of this session are ignored.
func (c *Controller) HandleEvent(ctx context.Context, ev Event) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.id != ev.Session || s.gen != ev.Generation {
		c.logger.Debug().
			Str("kind", ev.Kind.String()).
			Str("session", ev.Session.String()).
			Uint64("generation", ev.Generation).
			Msg("Dropping stale event")
		return OutcomeIgnored, nil
	}

	switch ev.Kind {
	case EventTrackEnded:
		c.stopTrack(s)

		track, err := s.seq.Next(ctx)
		if errors.Is(err, catalog.ErrExhausted) {
			if err := c.nextMixLocked(ctx); err != nil {
				return OutcomeStopped, err
			}
			return OutcomeNextMix, nil
		}
		if err != nil {
			c.endSessionLocked()
			return OutcomeStopped, fmt.Errorf("failed to fetch next track: %w", err)
		}
		if err := c.startTrack(ctx, s, track); err != nil {
			c.endSessionLocked()
			return OutcomeStopped, err
		}
		return OutcomeNextTrack, nil

	case EventProcessExited:
		c.logger.Warn().Str("track", s.track.String()).Msg("Player exited unexpectedly")
		c.endSessionLocked()
		return OutcomeStopped, fmt.Errorf("playback aborted: %w", player.ErrPlayerDead)

	case EventReportDue:
		if err := c.catalog.ReportTrack(ctx, s.mix.ID, s.track.ID); err != nil {
			return OutcomeIgnored, fmt.Errorf("failed to report track: %w", err)
		}
		c.logger.Debug().Int64("track_id", s.track.ID).Msg("Track reported")
		return OutcomeReported, nil

	default:
		return OutcomeIgnored, fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

// LikeMix likes the current mix
func (c *Controller) LikeMix(ctx context.Context, token string) error {
	return c.authenticated("like_mix", token, func(s *session) error {
		if err := c.catalog.LikeMix(ctx, token, s.mix.ID); err != nil {
			return err
		}
		s.mix.Liked = true
		return nil
	})
}

// UnlikeMix removes the like of the current mix
func (c *Controller) UnlikeMix(ctx context.Context, token string) error {
	return c.authenticated("unlike_mix", token, func(s *session) error {
		if err := c.catalog.UnlikeMix(ctx, token, s.mix.ID); err != nil {
			return err
		}
		s.mix.Liked = false
		return nil
	})
}

// FavTrack adds the current track to the user's favorites
func (c *Controller) FavTrack(ctx context.Context, token string) error {
	return c.authenticated("fav_track", token, func(s *session) error {
		if err := c.catalog.FavTrack(ctx, token, s.track.ID); err != nil {
			return err
		}
		s.track.Faved = true
		return nil
	})
}

// UnfavTrack removes the current track from the user's favorites
func (c *Controller) UnfavTrack(ctx context.Context, token string) error {
	return c.authenticated("unfav_track", token, func(s *session) error {
		if err := c.catalog.UnfavTrack(ctx, token, s.track.ID); err != nil {
			return err
		}
		s.track.Faved = false
		return nil
	})
}

// authenticated runs fn on the live session for a logged in user. Without
// a token the catalog is never called.
func (c *Controller) authenticated(op, token string, fn func(s *session) error) error {
	if token == "" {
		return fmt.Errorf("%s: %w", op, ErrAuthRequired)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.requireSession(op)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: StateStopped, Volume: c.volume}
	if s := c.session; s != nil {
		snap.State = s.state
		snap.Session = s.id
		snap.Mix = s.mix
		snap.Track = s.track
	}
	return snap
}

// Status returns the current state together with the player position
func (c *Controller) Status(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{Snapshot: c.snapshotLocked()}
	s := c.session
	if s == nil {
		return st, nil
	}

	ps, err := s.proc.Status(ctx)
	if err != nil {
		if errors.Is(err, player.ErrPlayerDead) {
			c.endSessionLocked()
			st.Snapshot = c.snapshotLocked()
		}
		return st, fmt.Errorf("status: %w", err)
	}
	st.Position = ps.Position
	st.Duration = ps.Duration
	if st.Duration == 0 {
		st.Duration = s.track.Duration
	}
	st.Known = ps.Known
	return st, nil
}

// watch waits for the player of one track to end and polls its position
// for the report rule. It only posts events.
func (c *Controller) watch(ctx context.Context, id uuid.UUID, gen uint64, proc player.Process) {
	ended := make(chan player.End, 1)
	go func() {
		end, err := proc.Wait(ctx)
		if err == nil {
			ended <- end
		}
	}()

	ticker := time.NewTicker(c.opts.StatusInterval)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case <-ctx.Done():
			return
		case end := <-ended:
			kind := EventProcessExited
			if end == player.TrackEnded {
				kind = EventTrackEnded
			}
			c.post(ctx, Event{Session: id, Generation: gen, Kind: kind})
			return
		case <-ticker.C:
			if reported {
				continue
			}
			status, err := proc.Status(ctx)
			if err != nil || !status.Known {
				continue
			}
			if status.Position >= c.opts.ReportAfter {
				reported = true
				c.post(ctx, Event{Session: id, Generation: gen, Kind: EventReportDue})
			}
		}
	}
}

func (c *Controller) post(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
