package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionCookieName = "cart_session"

// Session ensures every shopper carries a session key so anonymous
// carts survive across requests. The cookie is issued lazily and kept
// for authenticated users too, so a login can merge the session cart.
func Session(secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := c.Cookie(sessionCookieName)
		if err != nil || key == "" {
			key = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookieName, key, 86400, "/", "", secure, true)
		}

		c.Set("session_key", key)
		c.Next()
	}
}

// GetSessionKeyFromContext extracts the cart session key from gin context
func GetSessionKeyFromContext(c *gin.Context) string {
	key, exists := c.Get("session_key")
	if !exists {
		return ""
	}
	return key.(string)
}
