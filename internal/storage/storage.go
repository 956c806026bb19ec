// Package storage admits user uploads into the sandboxed uploads directory.
//
// Every upload passes the same pipeline: size, filename, declared content
// type, per-user quota, free space, then a streaming write that checks the
// magic bytes against the extension and content type and enforces the size
// cap on the actual bytes. Any failure after the file is created removes it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/yukikurage/busybee/internal/logging"
	"github.com/yukikurage/busybee/internal/sandbox"
)

const (
	MaxUploadBytes    = 5 << 20
	MinFreeBytes      = 10 << 20
	MaxFilesPerUser   = 50
	MaxFilenameLength = 80

	magicReadLimit = 16
	chunkSize      = 8192
)

var (
	safeFilename    = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	safeUserSegment = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	unsafeUserChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

	allowedExtensions = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".gif":  true,
		".webp": true,
		".pdf":  true,
	}
)

// Upload is a file received from a client with a known declared size.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type FileStorage struct {
	box       *sandbox.Sandbox
	logger    *slog.Logger
	freeSpace func(dir string) (uint64, error)
	newName   func() string
}

type Option func(*FileStorage)

func WithLogger(l *slog.Logger) Option {
	return func(s *FileStorage) { s.logger = l }
}

// WithFreeSpace replaces the filesystem free-space probe.
func WithFreeSpace(fn func(dir string) (uint64, error)) Option {
	return func(s *FileStorage) { s.freeSpace = fn }
}

func New(box *sandbox.Sandbox, opts ...Option) *FileStorage {
	s := &FileStorage{
		box:       box,
		logger:    logging.Discard(),
		freeSpace: diskFree,
		newName:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreUpload admits a client upload and returns its stored handle
// "<user-segment>/<uuid><ext>".
func (s *FileStorage) StoreUpload(ctx context.Context, up Upload, username string) (string, error) {
	if up.Body == nil {
		return "", s.reject(ctx, KindBadRequest, "missing file", username, 0)
	}
	if up.Size <= 0 {
		return "", s.reject(ctx, KindBadRequest, "empty file", username, up.Size)
	}
	if up.Size > MaxUploadBytes {
		return "", s.reject(ctx, KindTooLarge, "file too large", username, up.Size)
	}
	return s.store(ctx, up.Body, up.Filename, up.ContentType, username, up.Size)
}

// StoreStream admits a body of unknown length. Free space is reserved for a
// maximum-size file and the cap is enforced while streaming.
func (s *FileStorage) StoreStream(ctx context.Context, body io.Reader, filename, username, contentType string) (string, error) {
	if body == nil {
		return "", s.reject(ctx, KindBadRequest, "missing file", username, 0)
	}
	return s.store(ctx, body, filename, contentType, username, MaxUploadBytes)
}

func (s *FileStorage) store(ctx context.Context, body io.Reader, filename, contentType, username string, size int64) (string, error) {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" || len(base) > MaxFilenameLength || !safeFilename.MatchString(base) {
		return "", s.reject(ctx, KindBadRequest, "invalid filename", username, size)
	}

	ext := lowerExtension(base)
	if ext == "" {
		return "", s.reject(ctx, KindBadRequest, "missing file extension", username, size)
	}
	if !allowedExtensions[ext] {
		return "", s.reject(ctx, KindUnsupported, "unsupported file extension", username, size)
	}

	contentType = normalizeContentType(contentType)
	if contentType == "" {
		return "", s.reject(ctx, KindUnsupported, "missing content type", username, size)
	}

	segment := SanitizeUserSegment(username)
	if err := s.box.MkdirAll(segment); err != nil {
		return "", fmt.Errorf("create user directory: %w", err)
	}

	count, err := s.countFiles(segment)
	if err != nil {
		return "", err
	}
	if count >= MaxFilesPerUser {
		return "", s.reject(ctx, KindTooMany, "too many files for user", username, size)
	}

	dir, err := s.box.Abs(segment)
	if err != nil {
		return "", err
	}
	free, err := s.freeSpace(dir)
	if err != nil {
		return "", fmt.Errorf("check free space: %w", err)
	}
	if free < uint64(size)+MinFreeBytes {
		return "", s.reject(ctx, KindBadRequest, "insufficient disk space", username, size)
	}

	handle := segment + "/" + s.newName() + ext
	f, err := s.box.CreateExclusive(handle)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	written, err := s.copyChecked(ctx, f, body, ext, contentType, username, size)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close upload: %w", closeErr)
	}
	if err != nil {
		s.removePartial(ctx, handle)
		var rej *Rejection
		if !errors.As(err, &rej) {
			s.logger.WarnContext(ctx, "upload failed", "user", logging.SafeValue(username), "error", err)
		}
		return "", err
	}

	s.logger.InfoContext(ctx, "upload stored", "user", logging.SafeValue(username), "stored", handle, "bytes", written)
	return handle, nil
}

// copyChecked writes body to dst after validating its magic bytes, stopping
// once more than MaxUploadBytes have been read.
func (s *FileStorage) copyChecked(ctx context.Context, dst io.Writer, body io.Reader, ext, contentType, username string, size int64) (int64, error) {
	header := make([]byte, magicReadLimit)
	n, err := io.ReadFull(body, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return 0, s.reject(ctx, KindBadRequest, "empty file", username, size)
	}
	header = header[:n]

	if reason, ok := checkType(contentType, ext, DetectMagic(header)); !ok {
		return 0, s.reject(ctx, KindUnsupported, reason, username, size)
	}
	if _, err := dst.Write(header); err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}

	total := int64(n)
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		r, readErr := body.Read(buf)
		if r > 0 {
			total += int64(r)
			if total > MaxUploadBytes {
				return total, s.reject(ctx, KindTooLarge, "file too large", username, size)
			}
			if _, err := dst.Write(buf[:r]); err != nil {
				return total, fmt.Errorf("write upload: %w", err)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("read upload: %w", readErr)
		}
	}
}

// GetBytes reads a stored file by its handle.
func (s *FileStorage) GetBytes(handle string) ([]byte, error) {
	return s.box.ReadFile(handle)
}

// CleanupStoredUpload removes a stored file after a later step failed.
// Errors are logged and never returned so they cannot mask the original one.
func (s *FileStorage) CleanupStoredUpload(ctx context.Context, handle string) {
	if strings.TrimSpace(handle) == "" {
		return
	}
	if err := s.box.Remove(handle); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.WarnContext(ctx, "upload cleanup failed", "stored", logging.SafeValue(handle), "error", err)
	}
}

func (s *FileStorage) removePartial(ctx context.Context, handle string) {
	if err := s.box.Remove(handle); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.ErrorContext(ctx, "remove partial upload", "stored", handle, "error", err)
	}
}

func (s *FileStorage) countFiles(segment string) (int, error) {
	entries, err := s.box.ReadDir(segment)
	if err != nil {
		return 0, fmt.Errorf("list user directory: %w", err)
	}
	count := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			count++
		}
	}
	return count, nil
}

func (s *FileStorage) reject(ctx context.Context, kind Kind, reason, username string, size int64) *Rejection {
	s.logger.WarnContext(ctx, "upload rejected",
		"status", kind.Status(),
		"reason", reason,
		"user", logging.SafeValue(username),
		"size", size,
	)
	return &Rejection{Kind: kind, Reason: reason}
}

// SanitizeUserSegment maps a username onto a directory name matching
// [A-Za-z0-9_-]+.
func SanitizeUserSegment(username string) string {
	trimmed := strings.TrimSpace(username)
	if safeUserSegment.MatchString(trimmed) {
		return trimmed
	}
	sanitized := unsafeUserChars.ReplaceAllString(trimmed, "_")
	if sanitized == "" {
		return "user"
	}
	return sanitized
}

func lowerExtension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx:])
}
