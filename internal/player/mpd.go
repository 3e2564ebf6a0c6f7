package player

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog"
)

// MPDConfig configures the MPD backend
type MPDConfig struct {
	Network  string // "tcp" or "unix"
	Addr     string // host:port or socket path
	Password string
	Resolver *Resolver // Follows stream redirects before the URL is queued; nil skips it
}

// mpdClient is the part of *mpd.Client the backend uses
type mpdClient interface {
	Status() (mpd.Attrs, error)
	Clear() error
	Add(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	SetVolume(volume int) error
	Close() error
}

// idleWatcher delivers MPD idle events
type idleWatcher interface {
	Events() <-chan string
	Errors() <-chan error
	Close() error
}

type gompdWatcher struct {
	w *mpd.Watcher
}

func (g gompdWatcher) Events() <-chan string { return g.w.Event }
func (g gompdWatcher) Errors() <-chan error  { return g.w.Error }
func (g gompdWatcher) Close() error          { return g.w.Close() }

// MPD plays streams through a Music Player Daemon. The MPD playlist is
// replaced on every spawn because a track can only be played once.
type MPD struct {
	config MPDConfig
	logger zerolog.Logger
	dial   func() (mpdClient, error)
	watch  func() (idleWatcher, error)
}

// NewMPD creates an MPD backend
func NewMPD(cfg MPDConfig, logger zerolog.Logger) *MPD {
	if cfg.Network == "" {
		cfg.Network = "tcp"
	}
	m := &MPD{
		config: cfg,
		logger: logger.With().Str("component", "player").Str("backend", "mpd").Logger(),
	}
	m.dial = func() (mpdClient, error) {
		if cfg.Password != "" {
			return mpd.DialAuthenticated(cfg.Network, cfg.Addr, cfg.Password)
		}
		return mpd.Dial(cfg.Network, cfg.Addr)
	}
	m.watch = func() (idleWatcher, error) {
		w, err := mpd.NewWatcher(cfg.Network, cfg.Addr, cfg.Password, "player")
		if err != nil {
			return nil, err
		}
		return gompdWatcher{w: w}, nil
	}
	return m
}

// do runs fn on a fresh connection. MPD drops idle connections, so none
// is kept between commands.
func (m *MPD) do(fn func(c mpdClient) error) error {
	c, err := m.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to mpd at %s: %w", m.config.Addr, err)
	}
	defer func() { _ = c.Close() }()
	return fn(c)
}

// Spawn replaces the MPD playlist with streamURL and starts playing it
func (m *MPD) Spawn(ctx context.Context, streamURL string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// MPD streams https itself, so the final URL is queued as is
	streamURL = m.config.Resolver.Resolve(ctx, streamURL)

	// Watch before playing so the end of a short stream is not missed
	w, err := m.watch()
	if err != nil {
		return nil, &SpawnError{Player: m.config.Addr, Err: err}
	}

	var attrs mpd.Attrs
	err = m.do(func(c mpdClient) error {
		if err := c.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		if err := c.Add(streamURL); err != nil {
			return fmt.Errorf("add: %w", err)
		}
		if err := c.Play(0); err != nil {
			return fmt.Errorf("play: %w", err)
		}
		attrs, err = c.Status()
		return err
	})
	if err != nil {
		_ = w.Close()
		return nil, &SpawnError{Player: m.config.Addr, Err: err}
	}

	p := &mpdProcess{
		backend: m,
		songID:  attrs["songid"],
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  m.logger.With().Str("songid", attrs["songid"]).Logger(),
	}
	go p.run(w, attrs)

	p.logger.Debug().Str("url", streamURL).Msg("Playing on mpd")
	return p, nil
}

// mpdProcess is one stream playing on MPD
type mpdProcess struct {
	backend *MPD
	songID  string
	logger  zerolog.Logger

	stop       chan struct{} // closed by Close
	done       chan struct{} // closed once the outcome is known
	end        End
	finishOnce sync.Once
	closeOnce  sync.Once
}

func (p *mpdProcess) finish(end End) {
	p.finishOnce.Do(func() {
		p.end = end
		close(p.done)
	})
}

func (p *mpdProcess) alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// run follows the player subsystem until our song is gone
func (p *mpdProcess) run(w idleWatcher, prev mpd.Attrs) {
	defer func() { _ = w.Close() }()

	errs := w.Errors()
	for {
		select {
		case <-p.stop:
			return
		case subsystem, ok := <-w.Events():
			if !ok {
				p.finish(ProcessExited)
				return
			}
			if subsystem != "player" {
				continue
			}

			var cur mpd.Attrs
			err := p.backend.do(func(c mpdClient) error {
				var err error
				cur, err = c.Status()
				return err
			})
			if err != nil {
				p.logger.Warn().Err(err).Msg("Lost mpd connection")
				p.finish(ProcessExited)
				return
			}

			switch {
			case trackEnded(prev, cur):
				p.finish(TrackEnded)
				return
			case songReplaced(p.songID, cur):
				p.logger.Info().Str("now", cur["songid"]).Msg("Another client replaced the song")
				p.finish(ProcessExited)
				return
			}
			prev = cur
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Debug().Err(err).Msg("Watcher error")
			if pingErr := p.backend.do(func(c mpdClient) error {
				_, err := c.Status()
				return err
			}); pingErr != nil {
				p.finish(ProcessExited)
				return
			}
		}
	}
}

// Send implements Process
func (p *mpdProcess) Send(cmd Command) error {
	if !p.alive() {
		return ErrPlayerDead
	}

	err := p.backend.do(func(c mpdClient) error {
		switch cmd.Kind {
		case CmdTogglePause:
			attrs, err := c.Status()
			if err != nil {
				return err
			}
			return c.Pause(attrs["state"] == "play")
		case CmdSetVolume:
			return c.SetVolume(clampVolume(cmd.Volume))
		case CmdQuit:
			return c.Stop()
		default:
			return fmt.Errorf("unknown player command %d", cmd.Kind)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlayerDead, err)
	}
	return nil
}

// Status implements Process
func (p *mpdProcess) Status(ctx context.Context) (Status, error) {
	if !p.alive() {
		return Status{}, ErrPlayerDead
	}

	var attrs mpd.Attrs
	err := p.backend.do(func(c mpdClient) error {
		var err error
		attrs, err = c.Status()
		return err
	})
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrPlayerDead, err)
	}
	return parseMPDStatus(attrs), nil
}

// Wait implements Process
func (p *mpdProcess) Wait(ctx context.Context) (End, error) {
	select {
	case <-p.done:
		return p.end, nil
	case <-ctx.Done():
		return ProcessExited, ctx.Err()
	}
}

// Close implements Process. MPD stops at once, so grace is not used.
func (p *mpdProcess) Close(grace time.Duration) error {
	p.closeOnce.Do(func() {
		if p.alive() {
			if err := p.backend.do(func(c mpdClient) error { return c.Stop() }); err != nil {
				p.logger.Debug().Err(err).Msg("Failed to stop mpd")
			}
		}
		close(p.stop)
		p.finish(ProcessExited)
	})
	<-p.done
	return nil
}

// trackEnded reports a play to stop transition that left no current song,
// which is how MPD signals the end of a single-entry playlist.
func trackEnded(prev, cur mpd.Attrs) bool {
	wasPlaying := prev["state"] == "play" || prev["state"] == "pause"
	return wasPlaying && cur["state"] == "stop" && cur["songid"] == ""
}

// songReplaced reports whether a different song is now current
func songReplaced(songID string, cur mpd.Attrs) bool {
	id := cur["songid"]
	return id != "" && songID != "" && id != songID
}

func parseMPDStatus(attrs mpd.Attrs) Status {
	status := Status{Playing: attrs["state"] == "play"}

	if elapsed, err := strconv.ParseFloat(attrs["elapsed"], 64); err == nil {
		status.Position = time.Duration(elapsed * float64(time.Second))
		status.Known = true
	}
	if duration, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		status.Duration = time.Duration(duration * float64(time.Second))
	} else if _, total, ok := strings.Cut(attrs["time"], ":"); ok {
		// Older servers only report "elapsed:total" in whole seconds
		if secs, err := strconv.Atoi(total); err == nil {
			status.Duration = time.Duration(secs) * time.Second
		}
	}
	return status
}
