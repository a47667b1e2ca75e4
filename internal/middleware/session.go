package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/medsurvey/internal/response"
)

// RequireCurrentVariant rejects tokens issued for another survey variant,
// e.g. after the server was restarted with a different definition.
// Must run after RequireFormToken.
func RequireCurrentVariant(variant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.Variant != variant {
			response.AbortFail(c, http.StatusGone, response.ErrFormExpired)
			return
		}

		c.Next()
	}
}
