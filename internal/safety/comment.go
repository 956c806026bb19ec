package safety

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	CommentTextMinLength = 1
	CommentTextMaxLength = 500
	ImageNameMinLength   = 1
	ImageNameMaxLength   = 64
)

var (
	commentTextPattern = regexp.MustCompile(`^[a-zA-Z0-9\x{0590}-\x{05FF}\s.,!?"'():;\-_/]*$`)
	imageNamePattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)
)

// CommentText is the body of a task comment.
type CommentText struct {
	value string
}

func NewCommentText(raw string) (CommentText, error) {
	if strings.TrimSpace(raw) == "" {
		return CommentText{}, Invalid("text", "required")
	}
	if n := runeLen(raw); n < CommentTextMinLength || n > CommentTextMaxLength {
		return CommentText{}, Invalid("text", "length is invalid")
	}
	if !commentTextPattern.MatchString(raw) {
		return CommentText{}, Invalid("text", "contains invalid characters")
	}
	return CommentText{value: raw}, nil
}

func (t CommentText) String() string { return t.value }

func (t CommentText) MarshalJSON() ([]byte, error) { return json.Marshal(t.value) }

func (t *CommentText) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "text")
	if err != nil {
		return err
	}
	v, err := NewCommentText(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ImageName names a stored media file relative to the uploads root, as
// referenced by /image and /attachment.
type ImageName struct {
	value string
}

func NewImageName(raw string) (ImageName, error) {
	if strings.TrimSpace(raw) == "" {
		return ImageName{}, Invalid("file", "required")
	}
	if n := runeLen(raw); n < ImageNameMinLength || n > ImageNameMaxLength {
		return ImageName{}, Invalid("file", "length is invalid")
	}
	if strings.Contains(raw, `\`) {
		return ImageName{}, Invalid("file", "contains invalid path separator")
	}
	if strings.Contains(raw, "..") {
		return ImageName{}, Invalid("file", "contains invalid sequence")
	}
	if !imageNamePattern.MatchString(raw) {
		return ImageName{}, Invalid("file", "contains invalid characters")
	}
	return ImageName{value: raw}, nil
}

func (n ImageName) String() string { return n.value }

// Base returns the final path element, used for Content-Disposition.
func (n ImageName) Base() string {
	if i := strings.LastIndexByte(n.value, '/'); i >= 0 {
		return n.value[i+1:]
	}
	return n.value
}

func (n ImageName) MarshalJSON() ([]byte, error) { return json.Marshal(n.value) }

func (n *ImageName) UnmarshalJSON(data []byte) error {
	s, err := decodeString(data, "file")
	if err != nil {
		return err
	}
	v, err := NewImageName(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}
