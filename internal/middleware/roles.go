package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/busybee/internal/errors"
	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/models"
)

// RequireAnyRole lets the request through when the account holds at least
// one of roles. It must run after RequireAuth.
func RequireAnyRole(log *slog.Logger, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			apierrors.Unauthorized(c)
			return
		}
		for _, r := range roles {
			if account.HasRole(r) {
				c.Next()
				return
			}
		}
		log.WarnContext(c.Request.Context(), "authorization failure",
			"user", logging.SafeValue(account.Username), "path", c.FullPath())
		apierrors.Forbidden(c)
	}
}
