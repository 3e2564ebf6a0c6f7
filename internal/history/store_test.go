package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates an in-memory SQLite store for testing
func createTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestNewStore(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		store, err := NewStore(":memory:")
		if err != nil {
			t.Fatalf("failed to create in-memory store: %v", err)
		}
		defer func() { _ = store.Close() }()

		if store.db == nil {
			t.Error("store database is nil")
		}
	})

	t.Run("file-based database survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")
		ctx := context.Background()

		store, err := NewStore(path)
		if err != nil {
			t.Fatalf("failed to create file-based store: %v", err)
		}
		if err := store.AddCommand(ctx, "search jazz", time.Now()); err != nil {
			t.Fatalf("add: %v", err)
		}
		_ = store.Close()

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected database file: %v", err)
		}

		store, err = NewStore(path)
		if err != nil {
			t.Fatalf("failed to reopen store: %v", err)
		}
		defer func() { _ = store.Close() }()

		commands, err := store.RecentCommands(ctx, 10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(commands) != 1 || commands[0].Line != "search jazz" {
			t.Errorf("expected persisted command, got %+v", commands)
		}
	})
}

func TestRecentCommands(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	lines := []string{"search jazz", "", "play 3", "   ", "pause", "\t", "stop"}
	now := time.Now()
	for i, line := range lines {
		if err := store.AddCommand(ctx, line, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("add %q: %v", line, err)
		}
	}

	commands, err := store.RecentCommands(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}

	// Newest last, blank lines skipped
	want := []string{"play 3", "pause", "stop"}
	if len(commands) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(commands))
	}
	for i, c := range commands {
		if c.Line != want[i] {
			t.Errorf("command %d: expected %q, got %q", i, want[i], c.Line)
		}
	}
}

func TestAddCommand_Blank(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.AddCommand(ctx, "   ", time.Now()); err != nil {
		t.Fatalf("add: %v", err)
	}

	commands, err := store.RecentCommands(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(commands) != 0 {
		t.Errorf("expected whitespace-only line to be skipped, got %+v", commands)
	}
}

func TestPlays(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	play := Play{
		MixID:     1,
		MixName:   "Late Night",
		TrackID:   101,
		TrackName: "Song",
		Artist:    "Band",
		Timestamp: time.Now(),
	}
	id, err := store.AddPlay(ctx, play)
	if err != nil {
		t.Fatalf("add play: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive id, got %d", id)
	}

	if err := store.MarkReported(ctx, 1, 101); err != nil {
		t.Fatalf("mark reported: %v", err)
	}
	if err := store.MarkReported(ctx, 1, 999); err == nil {
		t.Error("expected error for unknown play")
	}

	plays, err := store.RecentPlays(ctx, 10)
	if err != nil {
		t.Fatalf("recent plays: %v", err)
	}
	if len(plays) != 1 || !plays[0].Reported || plays[0].Artist != "Band" {
		t.Errorf("unexpected plays: %+v", plays)
	}
}

func TestCleanup(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.AddCommand(ctx, "help", time.Now()); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := store.AddPlay(ctx, Play{MixID: 1, MixName: "old", TrackID: 1, TrackName: "t", Timestamp: time.Now().Add(-60 * 24 * time.Hour)}); err != nil {
		t.Fatalf("add play: %v", err)
	}
	if _, err := store.AddPlay(ctx, Play{MixID: 1, MixName: "new", TrackID: 2, TrackName: "t", Timestamp: time.Now()}); err != nil {
		t.Fatalf("add play: %v", err)
	}

	deleted, err := store.Cleanup(ctx, 2, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if deleted != 4 {
		t.Errorf("expected 4 rows deleted, got %d", deleted)
	}

	commands, _ := store.RecentCommands(ctx, 10)
	if len(commands) != 2 {
		t.Errorf("expected 2 commands left, got %d", len(commands))
	}
	plays, _ := store.RecentPlays(ctx, 10)
	if len(plays) != 1 || plays[0].MixName != "new" {
		t.Errorf("expected only the recent play, got %+v", plays)
	}
}
