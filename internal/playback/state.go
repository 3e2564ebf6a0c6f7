package playback

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/orochi/internal/catalog"
)

// State represents the playback state of the controller
type State int

const (
	StateStopped State = iota // No session
	StatePlaying              // A track is playing
	StatePaused               // A track is paused
)

// String returns a human-readable representation of the State
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// EventKind identifies what a watcher observed
type EventKind int

const (
	EventTrackEnded    EventKind = iota // The track played to its end
	EventProcessExited                  // The player went away on its own
	EventReportDue                      // The track played long enough to be reported
)

// String returns a human-readable representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventTrackEnded:
		return "track_ended"
	case EventProcessExited:
		return "process_exited"
	case EventReportDue:
		return "report_due"
	default:
		return "unknown"
	}
}

// Event is posted by a session watcher. It only applies to the session and
// track it was raised for.
type Event struct {
	Session    uuid.UUID
	Generation uint64 // track counter within the session
	Kind       EventKind
}

// Outcome tells the caller what HandleEvent did
type Outcome int

const (
	OutcomeIgnored   Outcome = iota // Stale event, nothing changed
	OutcomeNextTrack                // Advanced to the next track of the mix
	OutcomeNextMix                  // Advanced to another mix
	OutcomeStopped                  // The session ended
	OutcomeReported                 // The current track was reported
)

// Snapshot is a copy of the controller's visible state
type Snapshot struct {
	State   State
	Session uuid.UUID
	Mix     catalog.Mix
	Track   catalog.Track
	Volume  int
}

// Status is a Snapshot plus the player's position
type Status struct {
	Snapshot
	Position time.Duration
	Duration time.Duration
	Known    bool // position data came from the player
}

// Errors returned by the Controller
var (
	ErrEmptyMix        = errors.New("mix has no playable tracks")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAuthRequired    = errors.New("login required")
	ErrInvalidState    = errors.New("not allowed in the current state")

	// ErrSkipNotAllowed is the catalog refusing a skip; the track keeps playing
	ErrSkipNotAllowed = catalog.ErrSkipNotAllowed
)
