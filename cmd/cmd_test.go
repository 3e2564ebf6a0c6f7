package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jfmyers9/orochi/internal/config"
	"github.com/jfmyers9/orochi/internal/player"
	"github.com/rs/zerolog"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "debug.log")
			logger := setupLogger(path, tt.level)

			if got := logger.GetLevel(); got != tt.expected {
				t.Errorf("level = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	logger := setupLogger(path, "info")
	logger.Info().Str("component", "test").Msg("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) {
		t.Errorf("log file = %q, want JSON entry", data)
	}
}

func TestNewPlayer(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if _, ok := newPlayer(cfg, zerolog.Nop()).(*player.MPlayer); !ok {
		t.Error("default player is not mplayer")
	}

	cfg.Player = "mpd"
	if _, ok := newPlayer(cfg, zerolog.Nop()).(*player.MPD); !ok {
		t.Error("mpd setting did not select the mpd backend")
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "orochi dev") {
		t.Errorf("output = %q", buf.String())
	}
}
