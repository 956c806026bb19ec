package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/constants"
	apierrors "github.com/yukikurage/busybee/internal/errors"
	"github.com/yukikurage/busybee/internal/models"
)

// AccountLoader resolves the account behind a session username. Missing or
// disabled accounts report false.
type AccountLoader interface {
	CurrentUser(username string) (models.User, bool)
}

// RequireAuth checks if the user is authenticated via session and loads the
// account into the context. Failures answer a bare 401, never a redirect.
func RequireAuth(accounts AccountLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		username, ok := session.Get(constants.SessionKeyUsername).(string)
		if !ok || username == "" {
			apierrors.Unauthorized(c)
			return
		}

		account, ok := accounts.CurrentUser(username)
		if !ok {
			apierrors.Unauthorized(c)
			return
		}

		c.Set(constants.ContextKeyAccount, account)
		c.Next()
	}
}

// CurrentAccount retrieves the authenticated account from context
func CurrentAccount(c *gin.Context) (models.User, bool) {
	v, exists := c.Get(constants.ContextKeyAccount)
	if !exists {
		return models.User{}, false
	}
	account, ok := v.(models.User)
	return account, ok
}
