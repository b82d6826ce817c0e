// Package xhs provides the request executor for the Xiaohongshu web API.
//
// This package includes:
//   - Client, which owns the cookie session and runs every call through
//     rate limiting, signing, transport and status classification
//   - Typed records (Note, Comment, User) tolerant of the API's loose shapes
//   - Endpoint paths and URL helpers
//
// Example usage:
//
//	client, err := xhs.NewClient(cookies,
//	    xhs.WithSigner(signer),
//	    xhs.WithRateLimit(2, 0),
//	)
//	if err != nil {
//	    return err // invalid configuration, nothing was sent
//	}
//	if err := client.Open(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	resp, err := client.Get(ctx, xhs.UserSelfInfoEndpoint, nil)
//	if errors.Is(err, xerrors.ErrCookieExpired) {
//	    // re-authenticate
//	}
package xhs
