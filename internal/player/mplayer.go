package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// MPlayerConfig configures the MPlayer backend
type MPlayerConfig struct {
	Path          string        // Executable name or path (default "mplayer")
	ExtraArgs     []string      // Appended before the stream URL
	StartupWindow time.Duration // An exit within this window is a spawn failure
	StatusTimeout time.Duration // How long Status waits for answers
	KeepHTTPS     bool          // Pass https URLs through instead of downgrading them
	Resolver      *Resolver     // Follows stream redirects before the downgrade; nil skips it

	// PausingPrefix is put before commands that must not unpause the
	// player. Empty means detect it when the player starts.
	PausingPrefix string
	DetectTimeout time.Duration // How long detection waits for an answer
}

const (
	defaultStartupWindow = 500 * time.Millisecond
	defaultStatusTimeout = 300 * time.Millisecond
	defaultDetectTimeout = 100 * time.Millisecond

	// mplayer older than 1.0rc3 only knows pausing_keep, which lets the
	// player advance a frame while paused.
	pausingKeepForce = "pausing_keep_force"
	pausingKeep      = "pausing_keep"

	// Slave mode output. With -msgmodule every line is prefixed by its module.
	eofMarker    = "EOF code: 1"
	ansPosition  = "ANS_TIME_POSITION="
	ansLength    = "ANS_LENGTH="
	ansPrefixAll = "ANS_"
	ansUnknown   = "ANS_ERROR=PROPERTY_UNKNOWN"
)

// MPlayer runs one mplayer process per track in slave mode
type MPlayer struct {
	config MPlayerConfig
	logger zerolog.Logger
}

// NewMPlayer creates an MPlayer backend
func NewMPlayer(cfg MPlayerConfig, logger zerolog.Logger) *MPlayer {
	if cfg.Path == "" {
		cfg.Path = "mplayer"
	}
	if cfg.StartupWindow <= 0 {
		cfg.StartupWindow = defaultStartupWindow
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = defaultStatusTimeout
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = defaultDetectTimeout
	}
	return &MPlayer{
		config: cfg,
		logger: logger.With().Str("component", "player").Str("backend", "mplayer").Logger(),
	}
}

// Args returns the command line used to play streamURL
func (m *MPlayer) Args(streamURL string) []string {
	args := []string{
		"-slave", "-quiet",
		"-msgmodule", "-msglevel", "global=6:cplayer=4",
		"-input", "nodefault-bindings",
		"-vo", "null",
		"-cache", "1024",
	}
	args = append(args, m.config.ExtraArgs...)

	// Many mplayer builds cannot stream https
	if !m.config.KeepHTTPS && strings.HasPrefix(streamURL, "https:") {
		streamURL = "http:" + strings.TrimPrefix(streamURL, "https:")
	}
	return append(args, streamURL)
}

// Spawn starts mplayer on streamURL
func (m *MPlayer) Spawn(ctx context.Context, streamURL string) (Process, error) {
	path, err := exec.LookPath(m.config.Path)
	if err != nil {
		return nil, &SpawnError{Player: m.config.Path, Err: err}
	}

	streamURL = m.config.Resolver.Resolve(ctx, streamURL)

	// The process outlives ctx, so it is not bound to it
	cmd := exec.Command(path, m.Args(streamURL)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Player: path, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Player: path, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Player: path, Err: err}
	}

	p := &mplayerProcess{
		cmd:           cmd,
		stdin:         stdin,
		answers:       make(chan string, 16),
		exited:        make(chan struct{}),
		statusTimeout: m.config.StatusTimeout,
		pausing:       m.config.PausingPrefix,
		logger:        m.logger.With().Int("pid", cmd.Process.Pid).Logger(),
	}
	go p.supervise(stdout)

	p.logger.Debug().Str("url", streamURL).Msg("Player started")

	timer := time.NewTimer(m.config.StartupWindow)
	defer timer.Stop()

	select {
	case <-p.exited:
		if exitErr := p.exitError(); exitErr != nil {
			return nil, &SpawnError{Player: path, Err: exitErr}
		}
		// A clean exit this early is a very short stream; Wait reports it
		return p, nil
	case <-timer.C:
		if p.pausing == "" {
			p.pausing = p.detectPausing(m.config.DetectTimeout)
		}
		return p, nil
	case <-ctx.Done():
		_ = p.Close(0)
		return nil, ctx.Err()
	}
}

// mplayerProcess is a running mplayer in slave mode
type mplayerProcess struct {
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	answers       chan string   // ANS_ lines, oldest first
	exited        chan struct{} // closed once the process has been reaped
	statusTimeout time.Duration
	pausing       string // pausing_keep_force or pausing_keep
	logger        zerolog.Logger

	writeMu  sync.Mutex
	statusMu sync.Mutex // one Status exchange at a time

	mu      sync.Mutex
	paused  bool
	exitErr error

	sawEOF    atomic.Bool
	closeOnce sync.Once
}

// supervise reads player output until it closes, then reaps the process
func (p *mplayerProcess) supervise(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := stripModule(strings.TrimSpace(scanner.Text()))
		switch {
		case strings.HasPrefix(line, eofMarker):
			p.sawEOF.Store(true)
		case strings.HasPrefix(line, ansPrefixAll):
			select {
			case p.answers <- line:
			default:
				// Nobody is asking; drop it
			}
		}
	}

	err := p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	p.logger.Debug().Err(err).Bool("eof", p.sawEOF.Load()).Msg("Player exited")
	close(p.exited)
}

func (p *mplayerProcess) exitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *mplayerProcess) alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// write sends one slave mode command line
func (p *mplayerProcess) write(line string) error {
	if !p.alive() {
		return ErrPlayerDead
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrPlayerDead, err)
	}
	return nil
}

// detectPausing asks for a property that does not exist under
// pausing_keep_force. Only a player that understands the prefix answers.
func (p *mplayerProcess) detectPausing(timeout time.Duration) string {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	if err := p.write(pausingKeepForce + " get_property orochi_detect"); err != nil {
		return pausingKeepForce
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case line := <-p.answers:
			if strings.HasPrefix(line, ansUnknown) {
				return pausingKeepForce
			}
		case <-timer.C:
			p.logger.Warn().Msg("mplayer does not support pausing_keep_force, upgrade to 1.0rc3 or newer")
			return pausingKeep
		case <-p.exited:
			return pausingKeepForce
		}
	}
}

// Send implements Process
func (p *mplayerProcess) Send(cmd Command) error {
	var line string
	switch cmd.Kind {
	case CmdTogglePause:
		line = "pause"
	case CmdSetVolume:
		line = fmt.Sprintf("%s volume %d 1", p.pausing, clampVolume(cmd.Volume))
	case CmdQuit:
		line = "quit"
	default:
		return fmt.Errorf("unknown player command %d", cmd.Kind)
	}

	if err := p.write(line); err != nil {
		return err
	}

	if cmd.Kind == CmdTogglePause {
		p.mu.Lock()
		p.paused = !p.paused
		p.mu.Unlock()
	}
	return nil
}

// Status implements Process
func (p *mplayerProcess) Status(ctx context.Context) (Status, error) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	// Throw away answers nobody collected
	for drained := false; !drained; {
		select {
		case <-p.answers:
		default:
			drained = true
		}
	}

	if err := p.write(p.pausing + " get_time_pos"); err != nil {
		return Status{}, err
	}
	if err := p.write(p.pausing + " get_time_length"); err != nil {
		return Status{}, err
	}

	p.mu.Lock()
	status := Status{Playing: !p.paused}
	p.mu.Unlock()

	timer := time.NewTimer(p.statusTimeout)
	defer timer.Stop()

	var gotPos, gotLen bool
	for !gotPos || !gotLen {
		select {
		case line := <-p.answers:
			if v, ok := parseAnswer(line, ansPosition); ok {
				status.Position = v
				gotPos = true
			} else if v, ok := parseAnswer(line, ansLength); ok {
				status.Duration = v
				gotLen = true
			} else {
				p.logger.Debug().Str("line", line).Msg("Ignoring unparsable answer")
			}
		case <-timer.C:
			status.Known = gotPos
			return status, nil
		case <-p.exited:
			return Status{}, ErrPlayerDead
		case <-ctx.Done():
			return Status{}, ctx.Err()
		}
	}

	status.Known = true
	return status, nil
}

// Wait implements Process
func (p *mplayerProcess) Wait(ctx context.Context) (End, error) {
	select {
	case <-p.exited:
	case <-ctx.Done():
		return ProcessExited, ctx.Err()
	}

	if p.sawEOF.Load() && p.exitError() == nil {
		return TrackEnded, nil
	}
	return ProcessExited, nil
}

// Close implements Process
func (p *mplayerProcess) Close(grace time.Duration) error {
	p.closeOnce.Do(func() {
		if p.alive() {
			_ = p.write("quit")

			timer := time.NewTimer(grace)
			select {
			case <-p.exited:
			case <-timer.C:
				p.logger.Warn().Dur("grace", grace).Msg("Player ignored quit, killing it")
				_ = p.cmd.Process.Kill()
			}
			timer.Stop()
		}
		_ = p.stdin.Close()
	})

	<-p.exited
	return nil
}

// stripModule removes the "MODULE: " prefix -msgmodule puts on every line
func stripModule(line string) string {
	if i := strings.Index(line, ": "); i > 0 && strings.ToUpper(line[:i]) == line[:i] && !strings.Contains(line[:i], " ") {
		return line[i+2:]
	}
	return line
}

// parseAnswer parses an answer like "ANS_TIME_POSITION=12.3" into a duration
func parseAnswer(line, prefix string) (time.Duration, bool) {
	if !strings.HasPrefix(line, prefix) {
		return 0, false
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, prefix)), 64)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func clampVolume(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
