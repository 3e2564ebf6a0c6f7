// Package playertest provides a scriptable player for tests.
package playertest

import (
	"context"
	"sync"
	"time"

	"github.com/jfmyers9/orochi/internal/player"
)

// Fake is a player.Player whose processes live in memory
type Fake struct {
	mu       sync.Mutex
	SpawnErr error // returned by Spawn when set
	procs    []*Process
}

// Spawn implements player.Player
func (f *Fake) Spawn(ctx context.Context, streamURL string) (player.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SpawnErr != nil {
		return nil, &player.SpawnError{Player: "fake", Err: f.SpawnErr}
	}
	p := &Process{
		URL:    streamURL,
		status: player.Status{Playing: true, Known: true},
		done:   make(chan struct{}),
	}
	f.procs = append(f.procs, p)
	return p, nil
}

// Procs returns every process spawned so far, oldest first
func (f *Fake) Procs() []*Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Process(nil), f.procs...)
}

// Last returns the most recently spawned process, or nil
func (f *Fake) Last() *Process {
	procs := f.Procs()
	if len(procs) == 0 {
		return nil
	}
	return procs[len(procs)-1]
}

// Process is an in-memory player.Process
type Process struct {
	URL string

	mu       sync.Mutex
	commands []player.Command
	status   player.Status
	closed   bool
	end      player.End
	done     chan struct{}
	once     sync.Once
}

// Finish ends the process as if the player reported end
func (p *Process) Finish(end player.End) {
	p.once.Do(func() {
		p.mu.Lock()
		p.end = end
		p.mu.Unlock()
		close(p.done)
	})
}

// SetPosition sets the position reported by Status
func (p *Process) SetPosition(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Position = d
}

// Commands returns the commands sent to the process
func (p *Process) Commands() []player.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]player.Command(nil), p.commands...)
}

// Closed reports whether Close was called
func (p *Process) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Alive reports whether the process has not ended
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Send implements player.Process
func (p *Process) Send(cmd player.Command) error {
	if !p.Alive() {
		return player.ErrPlayerDead
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, cmd)
	if cmd.Kind == player.CmdTogglePause {
		p.status.Playing = !p.status.Playing
	}
	return nil
}

// Status implements player.Process
func (p *Process) Status(ctx context.Context) (player.Status, error) {
	if !p.Alive() {
		return player.Status{}, player.ErrPlayerDead
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

// Wait implements player.Process
func (p *Process) Wait(ctx context.Context) (player.End, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.end, nil
	case <-ctx.Done():
		return player.ProcessExited, ctx.Err()
	}
}

// Close implements player.Process
func (p *Process) Close(grace time.Duration) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.Finish(player.ProcessExited)
	return nil
}
