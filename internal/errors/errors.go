package errors

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/repository"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/sandbox"
	"github.com/yukikurage/busybee/internal/services"
	"github.com/yukikurage/busybee/internal/storage"
)

// Wire messages
const (
	MsgInvalidRequest  = "request: invalid"
	MsgMalformed       = "request: malformed"
	MsgInvalidPath     = "request: invalid path"
	MsgAccessDenied    = "access denied"
	MsgTaskNotFound    = "task: not found"
	MsgResourceMissing = "resource: not found"
	MsgNameTaken       = "name: task name already exists"
	MsgUserExists      = "username: already exists"
	MsgTaskDone        = "task: already done"
	MsgCommentNotFound = "commentid: not found"
	MsgIOError         = "server: io error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{Error: message})
}

// Unauthorized sends a bare 401 so media requests fail visibly.
func Unauthorized(c *gin.Context) {
	c.AbortWithStatus(http.StatusUnauthorized)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context) {
	RespondWithError(c, http.StatusForbidden, MsgAccessDenied)
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = MsgResourceMissing
	}
	RespondWithError(c, http.StatusNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = MsgInvalidRequest
	}
	RespondWithError(c, http.StatusBadRequest, message)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, MsgIOError)
}

// Respond maps a domain error to its status and wire message. Log lines
// carry the request path and the error kind, never request content.
func Respond(c *gin.Context, log *slog.Logger, err error) {
	ctx := c.Request.Context()
	path := c.FullPath()

	var ve *safety.ValidationError
	var rej *storage.Rejection
	switch {
	case errors.As(err, &ve):
		log.WarnContext(ctx, "rejected request", "path", path, "type", "validation")
		BadRequest(c, ve.Error())
	case errors.As(err, &rej):
		log.WarnContext(ctx, "rejected request", "path", path, "type", "upload", "kind", rej.Kind.String())
		RespondWithError(c, rej.Kind.Status(), storage.ClientMessage)
	case errors.Is(err, sandbox.ErrEscape):
		log.WarnContext(ctx, "rejected request", "path", path, "type", "sandbox escape")
		BadRequest(c, MsgInvalidPath)
	case errors.Is(err, services.ErrAccessDenied):
		log.WarnContext(ctx, "authorization failure", "path", path)
		Forbidden(c)
	case errors.Is(err, services.ErrInvalidCredentials):
		log.WarnContext(ctx, "authentication failure", "path", path)
		Unauthorized(c)
	case errors.Is(err, repository.ErrTaskNotFound):
		log.WarnContext(ctx, "rejected request", "path", path, "type", "task not found")
		NotFound(c, MsgTaskNotFound)
	case errors.Is(err, fs.ErrNotExist):
		NotFound(c, MsgResourceMissing)
	case errors.Is(err, repository.ErrTaskNameTaken):
		log.WarnContext(ctx, "rejected request", "path", path, "type", "duplicate name")
		Conflict(c, MsgNameTaken)
	case errors.Is(err, repository.ErrUserExists):
		log.WarnContext(ctx, "rejected request", "path", path, "type", "user exists")
		BadRequest(c, MsgUserExists)
	case errors.Is(err, repository.ErrTaskDone):
		BadRequest(c, MsgTaskDone)
	case errors.Is(err, repository.ErrCommentNotFound):
		BadRequest(c, MsgCommentNotFound)
	case errors.Is(err, repository.ErrCommentMedia):
		BadRequest(c, MsgInvalidRequest)
	default:
		log.ErrorContext(ctx, "server io failure", "path", path, "error", err)
		InternalError(c)
	}
}

// RespondBind reports a request body that could not be decoded. Validation
// failures raised while decoding keep their field message.
func RespondBind(c *gin.Context, log *slog.Logger, err error) {
	var ve *safety.ValidationError
	if errors.As(err, &ve) {
		Respond(c, log, ve)
		return
	}
	log.WarnContext(c.Request.Context(), "rejected request", "path", c.FullPath(), "type", "malformed body")
	BadRequest(c, MsgMalformed)
}
