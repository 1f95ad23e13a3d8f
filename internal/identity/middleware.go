// Package identity resolves the best-effort visitor identity: a username
// plus the client address. There is no authentication; the pair only keys
// conversation history to a machine.
package identity

import (
	"net/http"
	"os/user"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"legalquery/internal/models"
	"legalquery/internal/service/assistant"
)

const userContextKey = "identity_user"

// Resolver looks up or creates the user row for the request identity.
type Resolver struct {
	store  *assistant.Service
	logger *zap.Logger
}

func NewResolver(store *assistant.Service, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Middleware resolves the visitor and stores the user record in the gin
// context. The username comes from the X-Username header, falling back to
// the OS account name of the server process, then "anonymous".
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := resolveUsername(c)
		ip := c.ClientIP()
		if ip == "" {
			ip = "0.0.0.0"
		}

		u, err := r.store.GetOrCreateUser(c.Request.Context(), username, ip)
		if err != nil {
			r.logger.Error("resolve user", zap.String("username", username), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve user"})
			return
		}
		c.Set(userContextKey, u)
		c.Next()
	}
}

// UserFromContext retrieves the resolved user from the gin context.
func UserFromContext(c *gin.Context) (*models.User, bool) {
	val, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	u, ok := val.(*models.User)
	return u, ok
}

func resolveUsername(c *gin.Context) string {
	if name := strings.TrimSpace(c.GetHeader("X-Username")); name != "" {
		return name
	}
	if current, err := user.Current(); err == nil && current.Username != "" {
		return current.Username
	}
	return "anonymous"
}
