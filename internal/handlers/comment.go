package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/busybee/internal/dto"
	apierrors "github.com/yukikurage/busybee/internal/errors"
	"github.com/yukikurage/busybee/internal/middleware"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/services"
	"github.com/yukikurage/busybee/internal/storage"
)

const (
	// MaxCommentBody bounds the whole multipart request: one upload plus
	// form overhead.
	MaxCommentBody = storage.MaxUploadBytes + 1<<20

	maxCommentFieldsBytes = 64 << 10
)

type CommentHandler struct {
	commentService *services.CommentService
	log            *slog.Logger
}

func NewCommentHandler(commentService *services.CommentService, log *slog.Logger) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		log:            log,
	}
}

// AddComment accepts a multipart request with a commentFields JSON part and
// an optional file part.
func (h *CommentHandler) AddComment(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		apierrors.Unauthorized(c)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxCommentBody)
	form, err := c.MultipartForm()
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			apierrors.Respond(c, h.log, &storage.Rejection{Kind: storage.KindTooLarge, Reason: "request too large"})
			return
		}
		apierrors.BadRequest(c, apierrors.MsgMalformed)
		return
	}
	defer form.RemoveAll()

	fields, err := readCommentFields(form)
	if err != nil {
		apierrors.RespondBind(c, h.log, err)
		return
	}
	if fields.TaskID == nil {
		apierrors.Respond(c, h.log, safety.Invalid("taskid", "required"))
		return
	}
	if fields.Text == nil {
		apierrors.Respond(c, h.log, safety.Invalid("text", "required"))
		return
	}

	in := services.AddCommentInput{
		TaskID:   *fields.TaskID,
		After:    fields.CommentID,
		Text:     *fields.Text,
		ImageURL: fields.ImageURL,
	}

	if files := form.File["file"]; len(files) > 0 && files[0].Size > 0 {
		fh := files[0]
		f, err := fh.Open()
		if err != nil {
			apierrors.Respond(c, h.log, err)
			return
		}
		defer f.Close()
		in.File = &storage.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		}
	}

	comment, err := h.commentService.AddComment(c.Request.Context(), account, in)
	if err != nil {
		apierrors.Respond(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.CommentResponse{CommentID: comment.ID})
}

// readCommentFields decodes commentFields, sent either as a plain form value
// or as a file part with a JSON body.
func readCommentFields(form *multipart.Form) (dto.CommentFields, error) {
	var raw []byte
	if values := form.Value["commentFields"]; len(values) > 0 {
		raw = []byte(values[0])
	} else if parts := form.File["commentFields"]; len(parts) > 0 {
		f, err := parts[0].Open()
		if err != nil {
			return dto.CommentFields{}, err
		}
		defer f.Close()
		raw, err = io.ReadAll(io.LimitReader(f, maxCommentFieldsBytes))
		if err != nil {
			return dto.CommentFields{}, err
		}
	} else {
		return dto.CommentFields{}, safety.Invalid("commentFields", "required")
	}

	var fields dto.CommentFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return dto.CommentFields{}, err
	}
	return fields, nil
}
