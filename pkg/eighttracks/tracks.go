package eighttracks

import (
	"context"
	"fmt"
)

// TrackService favorites and unfavorites tracks.
type TrackService struct {
	client *Client
}

// Fav adds a track to the token user's favorites.
func (s *TrackService) Fav(ctx context.Context, id int64, userToken string) error {
	return s.toggle(ctx, id, "fav", userToken)
}

// Unfav removes a track from the token user's favorites.
func (s *TrackService) Unfav(ctx context.Context, id int64, userToken string) error {
	return s.toggle(ctx, id, "unfav", userToken)
}

func (s *TrackService) toggle(ctx context.Context, id int64, action, userToken string) error {
	if userToken == "" {
		return ErrNoUserToken
	}
	return s.client.post(ctx, fmt.Sprintf("tracks/%d/%s.json", id, action), nil, userToken, nil)
}
