package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// 8tracks developer API key
	APIKey string

	// Credentials used by login and autologin
	Username  string
	Password  string
	Autologin bool

	// Search ordering: hot, recent or popular
	// Default: "hot"
	Sorting string

	// Mixes shown per page
	// Default: 10
	ResultsPerPage int

	// Show the playing track in the terminal title
	TerminalTitle bool

	// Write the playing track to <data-dir>/currentsong
	LogCurrentSong bool

	// Template for the terminal title and the currentsong file
	// Default: "{{.Artist}} - {{.Name}}"
	NowPlayingFormat string

	// Player backend: mplayer or mpd
	// Default: "mplayer"
	Player string

	// MPlayer backend settings
	MPlayerPath      string
	MPlayerExtraArgs string

	// MPD backend settings
	MPDHost     string
	MPDPort     int
	MPDPassword string

	// Initial volume, 0-100
	// Default: 100
	Volume int

	// Timeout of a single catalog request, in seconds
	// Default: 15
	HTTPTimeout int

	path string // file Load read from and Save writes to
}

// setting describes one key accepted by Set
type setting struct {
	get func(c *Config) string
	set func(c *Config, value string) error
}

var settings = map[string]setting{
	"api_key":  stringSetting(func(c *Config) *string { return &c.APIKey }),
	"username": stringSetting(func(c *Config) *string { return &c.Username }),
	"password": {
		get: func(c *Config) string {
			if c.Password == "" {
				return ""
			}
			return "********"
		},
		set: func(c *Config, v string) error { c.Password = v; return nil },
	},
	"autologin":        boolSetting(func(c *Config) *bool { return &c.Autologin }),
	"sorting":          choiceSetting(func(c *Config) *string { return &c.Sorting }, "hot", "recent", "popular"),
	"results_per_page": intSetting(func(c *Config) *int { return &c.ResultsPerPage }, 1, 100),
	"terminal_title":   boolSetting(func(c *Config) *bool { return &c.TerminalTitle }),
	"log_current_song": boolSetting(func(c *Config) *bool { return &c.LogCurrentSong }),
	"now_playing_format": {
		get: func(c *Config) string { return c.NowPlayingFormat },
		set: func(c *Config, v string) error {
			if _, err := template.New("now_playing").Parse(v); err != nil {
				return err
			}
			c.NowPlayingFormat = v
			return nil
		},
	},
	"player":                  choiceSetting(func(c *Config) *string { return &c.Player }, "mplayer", "mpd"),
	"mplayer_path":            stringSetting(func(c *Config) *string { return &c.MPlayerPath }),
	"mplayer_extra_arguments": stringSetting(func(c *Config) *string { return &c.MPlayerExtraArgs }),
	"mpd_host":                stringSetting(func(c *Config) *string { return &c.MPDHost }),
	"mpd_port":                intSetting(func(c *Config) *int { return &c.MPDPort }, 1, 65535),
	"mpd_password":            stringSetting(func(c *Config) *string { return &c.MPDPassword }),
	"volume":                  intSetting(func(c *Config) *int { return &c.Volume }, 0, 100),
	"http_timeout":            intSetting(func(c *Config) *int { return &c.HTTPTimeout }, 1, 300),
}

// Load reads configuration from file and environment.
// An empty path uses ~/.config/orochi/config.yaml. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = filepath.Join(getConfigDir(), "config.yaml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults
	v.SetDefault("sorting", "hot")
	v.SetDefault("results_per_page", 10)
	v.SetDefault("now_playing_format", "{{.Artist}} - {{.Name}}")
	v.SetDefault("player", "mplayer")
	v.SetDefault("mplayer_path", "mplayer")
	v.SetDefault("mpd_host", "localhost")
	v.SetDefault("mpd_port", 6600)
	v.SetDefault("volume", 100)
	v.SetDefault("http_timeout", 15)

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	// Read from environment variables, e.g. OROCHI_API_KEY
	v.SetEnvPrefix("OROCHI")
	v.AutomaticEnv()

	cfg := &Config{
		APIKey:           v.GetString("api_key"),
		Username:         v.GetString("username"),
		Password:         v.GetString("password"),
		Autologin:        v.GetBool("autologin"),
		Sorting:          v.GetString("sorting"),
		ResultsPerPage:   v.GetInt("results_per_page"),
		TerminalTitle:    v.GetBool("terminal_title"),
		LogCurrentSong:   v.GetBool("log_current_song"),
		NowPlayingFormat: v.GetString("now_playing_format"),
		Player:           v.GetString("player"),
		MPlayerPath:      v.GetString("mplayer_path"),
		MPlayerExtraArgs: v.GetString("mplayer_extra_arguments"),
		MPDHost:          v.GetString("mpd_host"),
		MPDPort:          v.GetInt("mpd_port"),
		MPDPassword:      v.GetString("mpd_password"),
		Volume:           v.GetInt("volume"),
		HTTPTimeout:      v.GetInt("http_timeout"),
		path:             path,
	}

	return cfg, nil
}

// Path returns the file the configuration is saved to
func (c *Config) Path() string {
	return c.path
}

// Keys returns the setting names accepted by Get and Set, sorted
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a setting formatted for display. The password is masked.
func (c *Config) Get(key string) (string, error) {
	s, ok := settings[key]
	if !ok {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return s.get(c), nil
}

// Set validates and changes a setting. Call Save to persist it.
func (c *Config) Set(key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := s.set(c, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// ExtraArgs splits the extra mplayer arguments on whitespace
func (c *Config) ExtraArgs() []string {
	return strings.Fields(c.MPlayerExtraArgs)
}

// getConfigDir returns the configuration directory path
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "orochi")
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns the directory for history and logs
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "orochi")
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	path := c.path
	if path == "" {
		path = filepath.Join(getConfigDir(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set values in viper
	v.Set("api_key", c.APIKey)
	v.Set("username", c.Username)
	v.Set("password", c.Password)
	v.Set("autologin", c.Autologin)
	v.Set("sorting", c.Sorting)
	v.Set("results_per_page", c.ResultsPerPage)
	v.Set("terminal_title", c.TerminalTitle)
	v.Set("log_current_song", c.LogCurrentSong)
	v.Set("now_playing_format", c.NowPlayingFormat)
	v.Set("player", c.Player)
	v.Set("mplayer_path", c.MPlayerPath)
	v.Set("mplayer_extra_arguments", c.MPlayerExtraArgs)
	v.Set("mpd_host", c.MPDHost)
	v.Set("mpd_port", c.MPDPort)
	v.Set("mpd_password", c.MPDPassword)
	v.Set("volume", c.Volume)
	v.Set("http_timeout", c.HTTPTimeout)

	// Write to file; it holds a password
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

func stringSetting(field func(c *Config) *string) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func boolSetting(field func(c *Config) *bool) setting {
	return setting{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			switch strings.ToLower(v) {
			case "true", "on", "yes", "1":
				*field(c) = true
			case "false", "off", "no", "0":
				*field(c) = false
			default:
				return fmt.Errorf("expected true or false, got %q", v)
			}
			return nil
		},
	}
}

func intSetting(field func(c *Config) *int, min, max int) setting {
	return setting{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected a number, got %q", v)
			}
			if n < min || n > max {
				return fmt.Errorf("must be between %d and %d", min, max)
			}
			*field(c) = n
			return nil
		},
	}
}

func choiceSetting(field func(c *Config) *string, choices ...string) setting {
	return setting{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			for _, choice := range choices {
				if v == choice {
					*field(c) = v
					return nil
				}
			}
			return fmt.Errorf("expected one of %s", strings.Join(choices, ", "))
		},
	}
}
