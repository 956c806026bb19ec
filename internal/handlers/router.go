package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/constants"
	"github.com/yukikurage/busybee/internal/middleware"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/services"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth         *services.AuthService
	Tasks        *services.TaskService
	Comments     *services.CommentService
	Authz        *services.TasksAuthorization
	Files        MediaStore
	SessionStore sessions.Store
	Logger       *slog.Logger
}

// SetupRouter builds the engine. Every route outside the anonymous group
// requires a session.
func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = MaxCommentBody
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.SecureHeaders())
	r.Use(sessions.Sessions(constants.SessionCookieName, d.SessionStore))

	authHandler := NewAuthHandler(d.Auth, d.Logger)
	taskHandler := NewTaskHandler(d.Tasks, d.Logger)
	commentHandler := NewCommentHandler(d.Comments, d.Logger)
	mediaHandler := NewMediaHandler(d.Authz, d.Files, d.Logger)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	authed := r.Group("/")
	authed.Use(middleware.RequireAuth(d.Auth))
	{
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/tasks", taskHandler.ListTasks)
		authed.POST("/create",
			middleware.RequireAnyRole(d.Logger, models.RoleAdmin, models.RoleCreator, models.RoleTrial),
			taskHandler.CreateTask)
		authed.POST("/done", taskHandler.MarkDone)
		authed.POST("/comment", commentHandler.AddComment)

		media := authed.Group("/")
		media.Use(middleware.MediaHeaders())
		media.GET("/image", mediaHandler.GetImage)
		media.GET("/attachment", mediaHandler.GetAttachment)
	}

	return r
}
