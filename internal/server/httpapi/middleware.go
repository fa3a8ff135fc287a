package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/common"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/auth"
	"github.com/dmitrijs2005/cloudkeeper/internal/server/sessions"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// requestLogger logs HTTP request/response metadata.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"latency", time.Since(start).String(),
		)
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.metrics.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// rateLimit applies the token bucket per client IP. Limiter failures let
// the request through.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		allowed, retryAfter, err := s.limiter.Allow(ctx, c.ClientIP())
		if err != nil {
			s.logger.Warn(ctx, "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			s.metrics.AuthEvent("rate_limited")
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			s.fail(c, common.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

// authRequired verifies the session token and stores its claims on the
// context. Tokens revoked one by one or through their user are refused; a
// denylist failure refuses too.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.ExtractToken(c.Request)
		if err != nil {
			s.fail(c, err)
			return
		}

		claims, err := s.tokens.Verify(raw)
		if err != nil {
			s.fail(c, err)
			return
		}

		for _, key := range []string{claims.ID, sessions.UserKey(claims.UserID)} {
			revoked, err := s.denylist.IsRevoked(c.Request.Context(), key)
			if err != nil {
				s.fail(c, err)
				return
			}
			if revoked {
				s.fail(c, common.ErrTokenRevoked)
				return
			}
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.AccessTokenCookieName, token, maxAge, "/", "", s.cfg.TLSEnabled(), true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	s.setSessionCookie(c, "", -1)
}
