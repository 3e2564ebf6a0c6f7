// Package eighttracks provides a client library for the 8tracks API v2.
//
// # Overview
//
// This package covers the parts of the 8tracks API a playback client needs:
// searching and looking up mixes, logging in, requesting playable tracks
// through a play token, reporting performances, and liking or favoriting
// content. Responses are JSON; every call accepts a context.
//
// # Quick Start
//
//	client, err := eighttracks.NewClient(eighttracks.Config{
//	    APIKey: "your-api-key",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	page, err := client.Mixes().Search(ctx, eighttracks.SearchOptions{
//	    Query: "jazz",
//	    Sort:  eighttracks.SortHot,
//	})
//
// # Playback
//
// 8tracks hands out one track at a time. A play token identifies the
// listening session; Play starts a mix, Next advances after a track ended
// naturally and Skip advances on user request. There is no way to go back.
//
//	set, err := client.Sets().Play(ctx, mixID)
//	fmt.Println(set.Track.Name, set.Track.URL)
//
// Every performance has to be reported once the 30 second mark is reached:
//
//	err := client.Sets().Report(ctx, mixID, set.Track.ID)
//
// # Authentication
//
// Login returns a user token. Calls that act on behalf of a user (like,
// favorite, liked mixes) take the token as an argument.
//
//	session, err := client.Auth().Login(ctx, "user", "secret")
//	err = client.Mixes().Like(ctx, mixID, session.UserToken)
//
// # Errors
//
// API failures are returned as *Error values carrying the HTTP status and
// the messages from the response body. Use the helper methods to classify
// them:
//
//	var apiErr *eighttracks.Error
//	if errors.As(err, &apiErr) && apiErr.Unauthorized() {
//	    // bad credentials or expired token
//	}
package eighttracks
