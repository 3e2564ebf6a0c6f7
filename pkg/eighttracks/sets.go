package eighttracks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// SetService requests playable tracks for a mix.
type SetService struct {
	client *Client
}

// PlayToken returns the client's play token, requesting one on first use.
func (s *SetService) PlayToken(ctx context.Context) (string, error) {
	c := s.client
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.playToken != "" {
		return c.playToken, nil
	}

	var resp struct {
		PlayToken string `json:"play_token"`
	}
	if err := c.get(ctx, "sets/new.json", nil, "", &resp); err != nil {
		return "", err
	}
	if resp.PlayToken == "" {
		return "", fmt.Errorf("eighttracks: empty play token")
	}
	c.playToken = resp.PlayToken
	return c.playToken, nil
}

// dropPlayToken forgets token so the next PlayToken call requests a new
// one. A token that was already replaced is left alone.
func (s *SetService) dropPlayToken(token string) {
	c := s.client
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.playToken == token {
		c.playToken = ""
	}
}

// withPlayToken runs fn with the play token. When 8tracks no longer knows
// the token, fn is retried once with a fresh one.
func (s *SetService) withPlayToken(ctx context.Context, fn func(token string) error) error {
	token, err := s.PlayToken(ctx)
	if err != nil {
		return err
	}

	err = fn(token)
	var apiErr *Error
	if !errors.As(err, &apiErr) || !(apiErr.Unauthorized() || apiErr.NotFound()) {
		return err
	}

	s.client.logDebugf("eighttracks: play token rejected with status %d, requesting a new one", apiErr.StatusCode)
	s.dropPlayToken(token)
	token, err = s.PlayToken(ctx)
	if err != nil {
		return err
	}
	return fn(token)
}

// Play starts a mix and returns its first track.
func (s *SetService) Play(ctx context.Context, mixID int64) (*Set, error) {
	return s.control(ctx, mixID, "play")
}

// Next returns the track following one that finished playing.
func (s *SetService) Next(ctx context.Context, mixID int64) (*Set, error) {
	return s.control(ctx, mixID, "next")
}

// Skip returns the next track on user request. The API answers with 403
// when the skip limit of the mix has been reached.
func (s *SetService) Skip(ctx context.Context, mixID int64) (*Set, error) {
	return s.control(ctx, mixID, "skip")
}

// Report registers a performance of a track. It must be called once a
// track has been playing for 30 seconds.
func (s *SetService) Report(ctx context.Context, mixID, trackID int64) error {
	params := url.Values{
		"mix_id":   {strconv.FormatInt(mixID, 10)},
		"track_id": {strconv.FormatInt(trackID, 10)},
	}
	return s.withPlayToken(ctx, func(token string) error {
		return s.client.get(ctx, "sets/"+url.PathEscape(token)+"/report.json", params, "", nil)
	})
}

func (s *SetService) control(ctx context.Context, mixID int64, command string) (*Set, error) {
	params := url.Values{
		"mix_id": {strconv.FormatInt(mixID, 10)},
	}

	var resp struct {
		Set *Set `json:"set"`
	}
	err := s.withPlayToken(ctx, func(token string) error {
		resource := "sets/" + url.PathEscape(token) + "/" + command + ".json"
		return s.client.get(ctx, resource, params, "", &resp)
	})
	if err != nil {
		return nil, err
	}
	if resp.Set == nil {
		return nil, fmt.Errorf("eighttracks: %s response has no set", command)
	}
	return resp.Set, nil
}
