package eighttracks

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MixService provides mix search, lookup and like operations.
type MixService struct {
	client *Client
}

// SearchOptions selects a page of the global mix search.
//
// Query and Tags may be combined; at least one of them should be set.
type SearchOptions struct {
	Query   string
	Tags    []string
	Sort    string
	Page    int
	PerPage int
}

// UserOptions selects a page of a user's mixes.
type UserOptions struct {
	Sort    string
	Page    int
	PerPage int
	Liked   bool // list the mixes the user liked instead of the ones they made
}

// DefaultPerPage is used when no page size is given.
const DefaultPerPage = 10

// Search lists mixes matching a keyword query and/or a set of tags.
func (s *MixService) Search(ctx context.Context, opts SearchOptions) (*MixPage, error) {
	params := pageParams(opts.Sort, opts.Page, opts.PerPage)
	if q := strings.TrimSpace(opts.Query); q != "" {
		params.Set("q", q)
	}
	if len(opts.Tags) > 0 {
		params.Set("tag", strings.Join(opts.Tags, "+"))
	}

	var page MixPage
	if err := s.client.get(ctx, "mixes.json", params, "", &page); err != nil {
		return nil, err
	}
	if page.Page == 0 {
		page.Page = pageOrFirst(opts.Page)
	}
	return &page, nil
}

// ByUser lists the mixes a user created, or liked when opts.Liked is set.
//
// Listing liked mixes requires the user's token.
func (s *MixService) ByUser(ctx context.Context, user string, opts UserOptions, userToken string) (*MixPage, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, fmt.Errorf("eighttracks: user is required")
	}
	params := pageParams(opts.Sort, opts.Page, opts.PerPage)
	if opts.Liked {
		if userToken == "" {
			return nil, ErrNoUserToken
		}
		params.Set("view", "liked")
	}

	var page MixPage
	resource := "users/" + url.PathEscape(user) + "/mixes.json"
	if err := s.client.get(ctx, resource, params, userToken, &page); err != nil {
		return nil, err
	}
	if page.Page == 0 {
		page.Page = pageOrFirst(opts.Page)
	}
	return &page, nil
}

// Get looks up a single mix by ID.
func (s *MixService) Get(ctx context.Context, id int64) (*Mix, error) {
	var resp struct {
		Mix *Mix `json:"mix"`
	}
	if err := s.client.get(ctx, "mixes/"+strconv.FormatInt(id, 10)+".json", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Mix == nil {
		return nil, &Error{StatusCode: 404, Messages: []string{"mix not found"}}
	}
	return resp.Mix, nil
}

// GetByPath looks up a mix by its web path, e.g. "/dj/some-mix".
func (s *MixService) GetByPath(ctx context.Context, path string) (*Mix, error) {
	path = strings.Trim(strings.TrimSuffix(path, ".json"), "/")
	if path == "" {
		return nil, fmt.Errorf("eighttracks: empty mix path")
	}
	var resp struct {
		Mix *Mix `json:"mix"`
	}
	if err := s.client.get(ctx, path+".json", nil, "", &resp); err != nil {
		return nil, err
	}
	if resp.Mix == nil {
		return nil, &Error{StatusCode: 404, Messages: []string{"mix not found"}}
	}
	return resp.Mix, nil
}

// Like marks a mix as liked by the token's user.
func (s *MixService) Like(ctx context.Context, id int64, userToken string) error {
	return s.toggle(ctx, id, "like", userToken)
}

// Unlike removes a like.
func (s *MixService) Unlike(ctx context.Context, id int64, userToken string) error {
	return s.toggle(ctx, id, "unlike", userToken)
}

func (s *MixService) toggle(ctx context.Context, id int64, action, userToken string) error {
	if userToken == "" {
		return ErrNoUserToken
	}
	resource := fmt.Sprintf("mixes/%d/%s.json", id, action)
	return s.client.post(ctx, resource, nil, userToken, nil)
}

func pageParams(sort string, page, perPage int) url.Values {
	if sort == "" {
		sort = SortHot
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return url.Values{
		"sort":     {sort},
		"page":     {strconv.Itoa(pageOrFirst(page))},
		"per_page": {strconv.Itoa(perPage)},
	}
}

func pageOrFirst(page int) int {
	if page < 1 {
		return 1
	}
	return page
}
