package auth

import (
	"chat-sync/domain"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const participantKey = "participant_id"

// Middleware resolves the caller's identity before any chat handler runs.
// Browsers cannot set headers on a websocket upgrade, so the token may
// also come as the "token" query parameter.
func Middleware(issuer Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token is missing"})
			return
		}

		participant, err := issuer.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(participantKey, participant)
		c.Next()
	}
}

// ParticipantFromContext returns the identity set by Middleware.
func ParticipantFromContext(c *gin.Context) (domain.ParticipantID, bool) {
	value, ok := c.Get(participantKey)
	if !ok {
		return "", false
	}
	participant, ok := value.(domain.ParticipantID)
	return participant, ok
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
