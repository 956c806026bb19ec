package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/busybee/internal/errors"
	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/middleware"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/services"
	"github.com/yukikurage/busybee/internal/storage"
)

// MediaStore reads stored uploads by handle.
type MediaStore interface {
	GetBytes(handle string) ([]byte, error)
}

// MediaHandler serves uploads referenced by comments on viewable tasks.
type MediaHandler struct {
	authz *services.TasksAuthorization
	files MediaStore
	log   *slog.Logger
}

func NewMediaHandler(authz *services.TasksAuthorization, files MediaStore, log *slog.Logger) *MediaHandler {
	return &MediaHandler{authz: authz, files: files, log: log}
}

// GetImage serves an image inline.
func (h *MediaHandler) GetImage(c *gin.Context) {
	name, ok := h.authorize(c, h.authz.ImageIsInOwnedOrAssignedTask)
	if !ok {
		return
	}
	h.serve(c, name, false)
}

// GetAttachment serves a file as a download.
func (h *MediaHandler) GetAttachment(c *gin.Context) {
	name, ok := h.authorize(c, h.authz.AttachmentIsInOwnedOrAssignedTask)
	if !ok {
		return
	}
	h.serve(c, name, true)
}

func (h *MediaHandler) authorize(c *gin.Context, allowed func(filename, username string) bool) (safety.ImageName, bool) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		apierrors.Unauthorized(c)
		return safety.ImageName{}, false
	}
	name, err := safety.NewImageName(c.Query("file"))
	if err != nil {
		apierrors.Respond(c, h.log, err)
		return safety.ImageName{}, false
	}
	if !allowed(name.String(), account.Username) {
		h.log.WarnContext(c.Request.Context(), "authorization failure",
			"user", logging.SafeValue(account.Username), "path", c.FullPath())
		apierrors.Forbidden(c)
		return safety.ImageName{}, false
	}
	return name, true
}

func (h *MediaHandler) serve(c *gin.Context, name safety.ImageName, download bool) {
	data, err := h.files.GetBytes(name.String())
	if err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}
	if download {
		c.Header("Content-Disposition", `attachment; filename="`+name.Base()+`"`)
	}
	c.Data(http.StatusOK, storage.ProbeContentType(name.String()), data)
}
