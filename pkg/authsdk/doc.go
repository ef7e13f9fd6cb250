/*
Package authsdk is the wire contract and Go client for the gatekeeper service.

The request and response types in this package are what the server encodes,
so handlers and callers share one definition. APIError is both the server's
failure writer and the client's error value.

# Client vs Session

A Client talks to public endpoints. Signing in returns a Session bound to
the issued bearer token:

	client := authsdk.NewClient("http://localhost:8080")

	session, resp, err := client.Signin(ctx, authsdk.SigninRequest{
		Username: "alice",
		Password: "Passw0rd1",
	})
	if errors.Is(err, authsdk.ErrTwoFactorRequired) {
		// retry with Code set
	}

	me, err := session.CurrentUser(ctx)

Administrators use the same Session type for the admin endpoints:

	users, err := session.ListUsers(ctx)
	res, err := session.UnlockAll(ctx)

# Errors

Every non-2xx response decodes into *APIError, so callers can switch on the
status code:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusLocked {
		// account locked
	}
*/
package authsdk
