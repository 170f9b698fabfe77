package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/career-chat/internal/common"
	"github.com/suPer8Hu/career-chat/internal/session"
	"github.com/suPer8Hu/career-chat/pkg/logger"
)

const sessionIDKey = "session_id"

// Session resolves the browser session from its signed cookie. A missing or
// invalid cookie starts a new session and sets a fresh cookie.
func Session(cookies *session.Cookies) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, err := c.Cookie(cookies.Name()); err == nil {
			if sid, err := cookies.Parse(raw); err == nil {
				c.Set(sessionIDKey, sid)
				c.Next()
				return
			}
		}

		sid, err := cookies.NewID()
		if err != nil {
			logger.Errorf("new session id: %v", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to start session")
			return
		}
		token, err := cookies.Sign(sid)
		if err != nil {
			logger.Errorf("sign session cookie: %v", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to start session")
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     cookies.Name(),
			Value:    token,
			MaxAge:   int(cookies.TTL().Seconds()),
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// SessionIDFrom returns the session id set by Session.
func SessionIDFrom(c *gin.Context) (string, bool) {
	sid := c.GetString(sessionIDKey)
	return sid, sid != ""
}
