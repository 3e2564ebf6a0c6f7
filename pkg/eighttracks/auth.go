package eighttracks

import (
	"context"
	"fmt"
	"net/url"
)

// AuthService provides authentication operations for the 8tracks API.
type AuthService struct {
	client *Client
}

// Login exchanges a username and password for a user token.
//
// Invalid credentials yield an *Error for which Unauthorized() is true.
//
// Example:
//
//	session, err := client.Auth().Login(ctx, "user", "secret")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("logged in as", session.User.Login)
func (a *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	params := url.Values{
		"login":    {login},
		"password": {password},
	}

	var session Session
	if err := a.client.post(ctx, "sessions.json", params, "", &session); err != nil {
		return nil, err
	}
	if session.UserToken == "" {
		return nil, fmt.Errorf("eighttracks: login response has no user token")
	}
	if session.User.Login == "" {
		session.User.Login = login
	}
	return &session, nil
}
