package eighttracks

import "strings"

// Sort orders accepted by the mix search.
const (
	SortHot     = "hot"
	SortRecent  = "recent"
	SortPopular = "popular"
)

// User is the public part of an 8tracks user.
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// Mix is a playlist published on 8tracks.
type Mix struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Path               string `json:"path"`
	TracksCount        int    `json:"tracks_count"`
	PlaysCount         int    `json:"plays_count"`
	LikesCount         int    `json:"likes_count"`
	Duration           int    `json:"duration"` // seconds
	TagListCache       string `json:"tag_list_cache"`
	User               User   `json:"user"`
	LikedByCurrentUser bool   `json:"liked_by_current_user"`
}

// Tags splits the comma separated tag cache.
func (m Mix) Tags() []string {
	var tags []string
	for _, t := range strings.Split(m.TagListCache, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// MixPage is one page of a mix listing.
type MixPage struct {
	Mixes        []Mix `json:"mixes"`
	Page         int   `json:"page"`
	NextPage     *int  `json:"next_page"`
	TotalEntries int   `json:"total_entries"`
}

// HasMore reports whether another page can be requested.
func (p *MixPage) HasMore() bool {
	return p.NextPage != nil && *p.NextPage > p.Page
}

// Track is a single playable track handed out by a set.
type Track struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Performer          string `json:"performer"`
	ReleaseName        string `json:"release_name"`
	URL                string `json:"url"`
	PlayDuration       int    `json:"play_duration"` // seconds
	FavedByCurrentUser bool   `json:"faved_by_current_user"`
}

// Set is the playback state of a mix within a play token.
type Set struct {
	AtBeginning bool   `json:"at_beginning"`
	AtEnd       bool   `json:"at_end"`
	AtLastTrack bool   `json:"at_last_track"`
	SkipAllowed bool   `json:"skip_allowed"`
	Track       *Track `json:"track"`
}

// Session is the result of a successful login.
type Session struct {
	UserToken string `json:"user_token"`
	User      User   `json:"current_user"`
}
