// Package common contains shared constants and sentinel errors used across
// cloudkeeper components.
package common

// AccessTokenHeaderName is the custom HTTP header that carries a raw session
// token. It takes precedence over the Authorization header and the cookie.
const AccessTokenHeaderName = "X-Auth-Token"

// AccessTokenCookieName is the cookie set by sign-in when the client asks
// for cookie transport.
const AccessTokenCookieName = "auth_token"
