package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxWriterClaims = "blocklog_writer_claims"

// RequireToken returns a Gin middleware that enforces a valid Bearer writer
// token. On success it injects the *WriterClaims into the context.
//
// A nil issuer disables enforcement, for development and open nodes.
func RequireToken(tokens *TokenIssuer) gin.HandlerFunc {
	if tokens == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxWriterClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the claims injected by RequireToken, or nil.
func ClaimsFromCtx(c *gin.Context) *WriterClaims {
	v, _ := c.Get(ctxWriterClaims)
	claims, _ := v.(*WriterClaims)
	return claims
}
