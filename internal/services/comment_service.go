package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/models"
	"github.com/yukikurage/busybee/internal/repository"
	"github.com/yukikurage/busybee/internal/safety"
	"github.com/yukikurage/busybee/internal/storage"
)

// Uploader stores admitted uploads and removes them again when the comment
// that references them could not be saved.
type Uploader interface {
	StoreUpload(ctx context.Context, up storage.Upload, username string) (string, error)
	CleanupStoredUpload(ctx context.Context, handle string)
}

// Downloader fetches a remote image into storage.
type Downloader interface {
	DownloadAndStore(ctx context.Context, rawURL, username string) (string, error)
}

// AddCommentInput carries a decoded comment request. At most one of File and
// ImageURL may be set.
type AddCommentInput struct {
	TaskID   uuid.UUID
	After    *uuid.UUID
	Text     safety.CommentText
	ImageURL string
	File     *storage.Upload
}

// CommentService adds comments, with optional media, to viewable tasks.
type CommentService struct {
	tasks   *repository.TaskStore
	authz   *TasksAuthorization
	files   Uploader
	fetcher Downloader
	logger  *slog.Logger
}

func NewCommentService(tasks *repository.TaskStore, authz *TasksAuthorization, files Uploader, fetcher Downloader, logger *slog.Logger) *CommentService {
	return &CommentService{
		tasks:   tasks,
		authz:   authz,
		files:   files,
		fetcher: fetcher,
		logger:  logger,
	}
}

// AddComment stores any media first, then appends the comment. The stored
// file is removed again if the comment cannot be added.
func (s *CommentService) AddComment(ctx context.Context, actor models.User, in AddCommentInput) (models.Comment, error) {
	if !s.authz.UserAllowedToComment(in.TaskID, actor.Username) {
		return models.Comment{}, ErrAccessDenied
	}
	imageURL := strings.TrimSpace(in.ImageURL)
	if in.File != nil && imageURL != "" {
		return models.Comment{}, safety.Invalid("request", "invalid")
	}

	author, err := safety.NewUsername(actor.Username)
	if err != nil {
		return models.Comment{}, err
	}
	comment := repository.NewComment{Text: in.Text, CreatedBy: author}

	var stored, contentType string
	switch {
	case in.File != nil:
		stored, err = s.files.StoreUpload(ctx, *in.File, actor.Username)
		contentType = in.File.ContentType
	case imageURL != "":
		stored, err = s.fetcher.DownloadAndStore(ctx, imageURL, actor.Username)
		contentType = storage.ProbeContentType(stored)
	}
	if err != nil {
		return models.Comment{}, err
	}
	if stored != "" {
		if storage.IdentifyType(contentType) == storage.TypeImage {
			comment.Image = stored
		} else {
			comment.Attachment = stored
		}
	}

	created, err := s.tasks.AddComment(ctx, in.TaskID, comment, in.After)
	// A persist failure leaves the comment in memory, so its file stays.
	if err != nil && stored != "" && !errors.Is(err, repository.ErrPersist) {
		s.logger.WarnContext(ctx, "comment rejected after upload",
			"user", logging.SafeValue(actor.Username), "stored", stored, "error", err)
		s.files.CleanupStoredUpload(ctx, stored)
	}
	return created, err
}
