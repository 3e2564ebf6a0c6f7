// Package shell implements the interactive command loop.
//
// The shell is either in browse mode (searching and picking mixes) or in
// play mode (controlling the playing mix). Each mode carries its own command
// table; a verb of the other mode is an unknown command.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/config"
	"github.com/jfmyers9/orochi/internal/history"
	"github.com/jfmyers9/orochi/internal/pager"
	"github.com/jfmyers9/orochi/internal/playback"
	"github.com/rs/zerolog"
)

// errExit ends the command loop
var errExit = errors.New("exit")

// command is one verb of a mode
type command struct {
	usage string
	help  string
	run   func(ctx context.Context, arg string) error
}

type commandTable map[string]command

// mode is the active command table. Only browseMode and playMode
// implement it.
type mode interface {
	table() commandTable
}

type browseMode struct {
	commands commandTable
}

func (m browseMode) table() commandTable { return m.commands }

type playMode struct {
	commands commandTable
	mix      string // name shown in the prompt
}

func (m playMode) table() commandTable { return m.commands }

// Options holds the collaborators of a Shell
type Options struct {
	Catalog    catalog.Catalog
	Pager      *pager.Pager
	Controller *playback.Controller
	Config     *config.Config
	History    *history.Store // optional
	In         io.Reader
	Out        io.Writer
	DataDir    string // where currentsong is written
	Logger     zerolog.Logger
}

// Shell reads command lines and dispatches them to the pager and the
// playback controller
type Shell struct {
	catalog catalog.Catalog
	pager   *pager.Pager
	ctrl    *playback.Controller
	cfg     *config.Config
	history *history.Store
	rawIn   io.Reader
	in      *lineReader
	out     io.Writer
	dataDir string
	logger  zerolog.Logger

	browse browseMode
	play   playMode
	mode   mode

	auth catalog.Session // zero when logged out

	// last announced playback, to detect track changes
	announcedSession uuid.UUID
	announcedTrack   int64
}

// New creates a Shell in browse mode
func New(opts Options) *Shell {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}

	s := &Shell{
		catalog: opts.Catalog,
		pager:   opts.Pager,
		ctrl:    opts.Controller,
		cfg:     opts.Config,
		history: opts.History,
		rawIn:   in,
		out:     out,
		dataDir: opts.DataDir,
		logger:  opts.Logger.With().Str("component", "shell").Logger(),
	}
	s.browse = browseMode{commands: s.browseCommands()}
	s.play = playMode{commands: s.playCommands()}
	s.mode = s.browse
	return s
}

// Run reads and dispatches lines until exit, end of input or ctx is done.
// Playback is always stopped before Run returns.
func (s *Shell) Run(ctx context.Context) error {
	s.in = newLineReader(s.rawIn)
	defer s.in.close()

	fmt.Fprintln(s.out, "Hello")
	s.autologin(ctx)

	showPrompt := true
	for {
		if showPrompt {
			fmt.Fprint(s.out, s.prompt())
		}
		s.in.request()

		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			s.shutdown()
			return nil

		case ev := <-s.ctrl.Events():
			showPrompt = s.handleEvent(ctx, ev)

		case r := <-s.in.results():
			s.in.received()
			showPrompt = true
			if r.err != nil {
				if !errors.Is(r.err, io.EOF) {
					s.logger.Error().Err(r.err).Msg("Failed to read input")
				}
				fmt.Fprintln(s.out)
				s.shutdown()
				return nil
			}
			if err := s.dispatch(ctx, r.text); errors.Is(err, errExit) {
				s.shutdown()
				return nil
			}
		}
	}
}

// shutdown stops playback and says goodbye
func (s *Shell) shutdown() {
	s.ctrl.Shutdown()
	s.syncMode(context.Background())
	fmt.Fprintln(s.out, "Goodbye")
}

// dispatch runs one input line against the active mode
func (s *Shell) dispatch(ctx context.Context, line string) error {
	s.record(ctx, line)

	verb, arg := splitLine(line)
	if verb == "" {
		switch s.mode.(type) {
		case browseMode:
			s.showNextPage(ctx)
		case playMode:
		}
		return nil
	}

	cmd, ok := s.mode.table()[verb]
	if !ok {
		s.notice("no such command: %s (type help for a list)", verb)
		return nil
	}

	err := cmd.run(ctx, arg)
	if errors.Is(err, errExit) {
		return err
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("verb", verb).Msg("Command failed")
		s.notice("%s", describe(err))
	}
	s.syncMode(ctx)
	return nil
}

// handleEvent feeds a watcher event to the controller. It reports whether
// anything was printed.
func (s *Shell) handleEvent(ctx context.Context, ev playback.Event) bool {
	outcome, err := s.ctrl.HandleEvent(ctx, ev)

	switch outcome {
	case playback.OutcomeIgnored:
		if err != nil {
			s.logger.Warn().Err(err).Str("kind", ev.Kind.String()).Msg("Event failed")
		}
		return false

	case playback.OutcomeReported:
		snap := s.ctrl.Snapshot()
		if s.history != nil {
			if err := s.history.MarkReported(ctx, snap.Mix.ID, snap.Track.ID); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to mark play as reported")
			}
		}
		return false
	}

	// The prompt is waiting for input; start on a fresh line
	fmt.Fprintln(s.out)
	if err != nil {
		s.notice("%s", describe(err))
	}
	s.syncMode(ctx)
	return true
}

// syncMode follows the controller: play mode while a session exists,
// browse mode otherwise. Track changes are announced once.
func (s *Shell) syncMode(ctx context.Context) {
	snap := s.ctrl.Snapshot()

	if snap.State == playback.StateStopped {
		if _, ok := s.mode.(playMode); ok {
			s.mode = s.browse
			s.clearNowPlaying()
		}
		s.announcedSession = uuid.Nil
		s.announcedTrack = 0
		return
	}

	s.play.mix = snap.Mix.Name
	s.mode = s.play

	if snap.Session == s.announcedSession && snap.Track.ID == s.announcedTrack {
		return
	}
	if snap.Session != s.announcedSession {
		s.printf("Playing mix %q by %s.\n", snap.Mix.Name, orUnknown(snap.Mix.Creator))
	}
	s.announcedSession = snap.Session
	s.announcedTrack = snap.Track.ID
	s.announce(ctx, snap)
}

// announce reports a new track on the terminal, the title, the
// currentsong file and the play log
func (s *Shell) announce(ctx context.Context, snap playback.Snapshot) {
	track := snap.Track
	if track.Artist != "" {
		s.printf("Now playing %q by %q...\n", track.Name, track.Artist)
	} else {
		s.printf("Now playing %q...\n", track.Name)
	}

	if s.cfg.TerminalTitle || s.cfg.LogCurrentSong {
		text, err := formatNowPlaying(newNowPlaying(snap.Mix, track), s.cfg.NowPlayingFormat)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to format now playing")
			text = track.String()
		}
		if s.cfg.TerminalTitle {
			setTitle(s.out, text)
		}
		if s.cfg.LogCurrentSong {
			s.writeCurrentSong(text + "\n")
		}
	}

	if s.history != nil {
		_, err := s.history.AddPlay(ctx, history.Play{
			MixID:     snap.Mix.ID,
			MixName:   snap.Mix.Name,
			TrackID:   track.ID,
			TrackName: track.Name,
			Artist:    track.Artist,
			Timestamp: time.Now(),
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record play")
		}
	}
}

// clearNowPlaying resets the side outputs once playback stops
func (s *Shell) clearNowPlaying() {
	if s.cfg.TerminalTitle {
		setTitle(s.out, "")
	}
	if s.cfg.LogCurrentSong {
		s.writeCurrentSong("")
	}
}

func (s *Shell) writeCurrentSong(text string) {
	if s.dataDir == "" {
		return
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to create data directory")
		return
	}
	path := filepath.Join(s.dataDir, "currentsong")
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to write current song")
	}
}

// record appends a line to the command history
func (s *Shell) record(ctx context.Context, line string) {
	if s.history == nil {
		return
	}
	if err := s.history.AddCommand(ctx, line, time.Now()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record command")
	}
}

func (s *Shell) prompt() string {
	switch m := s.mode.(type) {
	case playMode:
		return prompt(m.mix, true)
	default:
		return prompt("", false)
	}
}

func (s *Shell) printf(format string, args ...interface{}) {
	fmt.Fprintf(s.out, format, args...)
}

// notice prints a message about something that did not work out
func (s *Shell) notice(format string, args ...interface{}) {
	fmt.Fprintf(s.out, "*** "+format+"\n", args...)
}

// splitLine separates the verb from its raw argument string
func splitLine(line string) (verb, arg string) {
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i:])
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
