package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
)

// ExtractToken finds the session token in r. Sources are tried in order:
//
//  1. the X-Auth-Token header
//  2. Authorization: Bearer <token>
//  3. the auth_token cookie
//
// The first source that is present decides the outcome. No source at all
// yields common.ErrNoToken; a present but malformed one yields
// common.ErrInvalidToken.
func ExtractToken(r *http.Request) (string, error) {
	if values, ok := r.Header[http.CanonicalHeaderKey(common.AccessTokenHeaderName)]; ok {
		token := ""
		if len(values) > 0 {
			token = strings.TrimSpace(values[0])
		}
		if token == "" {
			return "", common.ErrInvalidToken
		}
		return token, nil
	}

	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", common.ErrInvalidToken
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", common.ErrInvalidToken
		}
		return token, nil
	}

	cookie, err := r.Cookie(common.AccessTokenCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", common.ErrNoToken
		}
		return "", common.ErrInvalidToken
	}
	if cookie.Value == "" {
		return "", common.ErrInvalidToken
	}
	return cookie.Value, nil
}
