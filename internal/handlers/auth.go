package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/constants"
	"github.com/yukikurage/busybee/internal/dto"
	apierrors "github.com/yukikurage/busybee/internal/errors"
	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	log         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

// Register creates a TRIAL account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondBind(c, h.log, err)
		return
	}
	if req.Username == nil {
		apierrors.Respond(c, h.log, safety.Invalid("username", "required"))
		return
	}
	if req.Password == nil {
		apierrors.Respond(c, h.log, safety.Invalid("password", "required"))
		return
	}

	if _, err := h.authService.Register(c.Request.Context(), *req.Username, *req.Password); err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}

	h.log.InfoContext(c.Request.Context(), "user registered", "user", logging.SafeValue(req.Username.String()))
	c.JSON(http.StatusOK, dto.RegisterResponse{RedirectTo: constants.RegisterRedirect})
}

// Login authenticates form credentials and initializes the session.
func (h *AuthHandler) Login(c *gin.Context) {
	user, err := h.authService.Login(c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(constants.SessionKeyUsername, user.Username)
	if err := session.Save(); err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}

	h.log.InfoContext(c.Request.Context(), "user logged in", "user", logging.SafeValue(user.Username))
	c.Redirect(http.StatusFound, constants.LoginRedirect)
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}
	c.Redirect(http.StatusFound, constants.LogoutRedirect)
}
