package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/renqiu-dev/wxauth/internal/token"
)

const identityKey = "wxauth.identity"

// SessionValidator is the slice of the session service the guard needs.
type SessionValidator interface {
	Validate(ctx context.Context, tok string) (*token.Payload, error)
}

// AccessGuard gates every request except those whose path is in public.
// It extracts a bearer credential, validates it against the session service,
// and attaches the verified identity to the request context. Rejections are
// terminal: no retry happens inside the guard.
func AccessGuard(sessions SessionValidator, public map[string]struct{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			// Unmatched routes never reach a handler; fail closed anyway.
			path = c.Request.URL.Path
		}
		if _, ok := public[path]; ok {
			c.Next()
			return
		}

		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortError(c, http.StatusUnauthorized, codeUnauthorized, "missing credential")
			return
		}

		payload, err := sessions.Validate(c.Request.Context(), tok)
		if err != nil {
			abortError(c, http.StatusUnauthorized, codeUnauthorized, "login state invalid or expired")
			return
		}

		c.Set(identityKey, payload)
		c.Next()
	}
}

// Identity returns the verified payload attached by the guard.
func Identity(c *gin.Context) (*token.Payload, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	payload, ok := v.(*token.Payload)
	return payload, ok
}

// bearerToken extracts the credential from an Authorization header value.
// Proxies occasionally fold several values into one comma-separated header;
// the first syntactically valid Bearer entry wins. Scheme matching is
// case-insensitive.
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		scheme, tok, found := strings.Cut(part, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			continue
		}
		tok = strings.TrimSpace(tok)
		if tok != "" {
			return tok, true
		}
	}
	return "", false
}
