package eighttracks

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Config holds client configuration.
type Config struct {
	APIKey     string       // Required: 8tracks developer API key
	HTTPClient *http.Client // Optional: HTTP client (defaults to a client with Timeout)
	Timeout    time.Duration
	BaseURL    string // Optional: Base URL for API (defaults to 8tracks, used for testing)
	Logger     Logger // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for 8tracks API operations.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     Logger

	// play token shared by all sets of this client
	tokenMu   sync.Mutex
	playToken string

	auth   *AuthService
	mixes  *MixService
	sets   *SetService
	tracks *TrackService
}

const (
	// DefaultBaseURL is the default 8tracks API endpoint.
	DefaultBaseURL = "https://8tracks.com/"

	// APIVersion is sent with every request in the X-Api-Version header.
	APIVersion = "2"

	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 15 * time.Second
)

// NewClient creates a new 8tracks API client.
//
// Returns an error if the API key is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("eighttracks: APIKey is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if baseURL[len(baseURL)-1] != '/' {
		baseURL += "/"
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     cfg.Logger,
	}

	c.auth = &AuthService{client: c}
	c.mixes = &MixService{client: c}
	c.sets = &SetService{client: c}
	c.tracks = &TrackService{client: c}

	return c, nil
}

// Auth returns the authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Mixes returns the mix search and lookup service.
func (c *Client) Mixes() *MixService {
	return c.mixes
}

// Sets returns the playback service.
func (c *Client) Sets() *SetService {
	return c.sets
}

// Tracks returns the track favorite service.
func (c *Client) Tracks() *TrackService {
	return c.tracks
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
