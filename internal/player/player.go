package player

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Player starts playback of a single stream in an external player
type Player interface {
	// Spawn starts playing streamURL and returns a handle to the running player
	Spawn(ctx context.Context, streamURL string) (Process, error)
}

// Process is one running player instance
type Process interface {
	// Send writes a control command to the player.
	// Returns ErrPlayerDead if the player has gone away.
	Send(cmd Command) error

	// Status asks the player for its position. Missing or unparsable
	// answers yield a Status with Known set to false, not an error.
	Status(ctx context.Context) (Status, error)

	// Wait blocks until the player is gone and reports why
	Wait(ctx context.Context) (End, error)

	// Close asks the player to quit and kills it after grace. Safe to call
	// more than once.
	Close(grace time.Duration) error
}

// DefaultCloseGrace is how long Close waits for a graceful quit
const DefaultCloseGrace = 2 * time.Second

// CommandKind identifies a control command
type CommandKind int

const (
	CmdTogglePause CommandKind = iota // Pause or resume
	CmdSetVolume                      // Set the volume to Command.Volume
	CmdQuit                           // Stop and exit
)

// Command is a control command for a player
type Command struct {
	Kind   CommandKind
	Volume int // 0-100, for CmdSetVolume
}

// TogglePause returns a pause/resume command
func TogglePause() Command { return Command{Kind: CmdTogglePause} }

// SetVolume returns a volume command
func SetVolume(v int) Command { return Command{Kind: CmdSetVolume, Volume: v} }

// Quit returns a quit command
func Quit() Command { return Command{Kind: CmdQuit} }

// String returns a human-readable representation of the Command
func (c Command) String() string {
	switch c.Kind {
	case CmdTogglePause:
		return "pause"
	case CmdSetVolume:
		return fmt.Sprintf("volume %d", c.Volume)
	case CmdQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Status is a point-in-time report from the player
type Status struct {
	Playing  bool          // false while paused
	Position time.Duration // Elapsed time in the current stream
	Duration time.Duration // Stream length, zero if the player does not know
	Known    bool          // false if the player gave no usable answer
}

// End tells why a player went away
type End int

const (
	TrackEnded    End = iota // The stream played to its end
	ProcessExited            // The player crashed, was killed or lost its connection
)

// String returns a human-readable representation of the End
func (e End) String() string {
	switch e {
	case TrackEnded:
		return "track ended"
	case ProcessExited:
		return "process exited"
	default:
		return "unknown"
	}
}

// ErrPlayerDead is returned when talking to a player that has exited
var ErrPlayerDead = errors.New("player is not running")

// SpawnError is returned when a player cannot be started
type SpawnError struct {
	Player string // Executable or server address
	Err    error
}

// Error returns the error message
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start player %s: %v", e.Player, e.Err)
}

// Unwrap returns the underlying error
func (e *SpawnError) Unwrap() error {
	return e.Err
}
