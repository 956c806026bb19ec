package storage

import (
	"bytes"
	"path"
	"strings"
)

// Magic identifies a file format from its leading bytes.
type Magic int

const (
	MagicUnknown Magic = iota
	MagicJPG
	MagicPNG
	MagicGIF
	MagicWEBP
	MagicPDF
)

var (
	sigJPG  = []byte{0xFF, 0xD8, 0xFF}
	sigPNG  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	sigGIF7 = []byte("GIF87a")
	sigGIF9 = []byte("GIF89a")
	sigRIFF = []byte("RIFF")
	sigWEBP = []byte("WEBP")
	sigPDF  = []byte("%PDF-")
)

// DetectMagic inspects at most the first 16 bytes of a file.
func DetectMagic(header []byte) Magic {
	switch {
	case bytes.HasPrefix(header, sigJPG):
		return MagicJPG
	case bytes.HasPrefix(header, sigPNG):
		return MagicPNG
	case bytes.HasPrefix(header, sigGIF7), bytes.HasPrefix(header, sigGIF9):
		return MagicGIF
	case len(header) >= 12 && bytes.Equal(header[0:4], sigRIFF) && bytes.Equal(header[8:12], sigWEBP):
		return MagicWEBP
	case bytes.HasPrefix(header, sigPDF):
		return MagicPDF
	default:
		return MagicUnknown
	}
}

type typeRule struct {
	exts  []string
	image bool
}

var typeRules = map[Magic]typeRule{
	MagicJPG:  {exts: []string{".jpg", ".jpeg"}, image: true},
	MagicPNG:  {exts: []string{".png"}, image: true},
	MagicGIF:  {exts: []string{".gif"}, image: true},
	MagicWEBP: {exts: []string{".webp"}, image: true},
	MagicPDF:  {exts: []string{".pdf"}},
}

// checkType reports whether the detected magic, the lower-case extension and
// the normalized content type agree. reason is set on mismatch.
func checkType(contentType, ext string, m Magic) (reason string, ok bool) {
	rule, known := typeRules[m]
	if !known {
		return "unsupported file type", false
	}
	if rule.image && !strings.HasPrefix(contentType, "image/") {
		return "invalid image content type", false
	}
	if !rule.image && !strings.Contains(contentType, "pdf") {
		return "invalid pdf content type", false
	}
	for _, e := range rule.exts {
		if e == ext {
			return "", true
		}
	}
	return "extension does not match content", false
}

// FileType classifies a declared content type.
type FileType int

const (
	TypeOther FileType = iota
	TypeImage
	TypePDF
)

func IdentifyType(contentType string) FileType {
	ct := normalizeContentType(contentType)
	switch {
	case ct == "":
		return TypeOther
	case strings.HasPrefix(ct, "image/"):
		return TypeImage
	case strings.Contains(ct, "pdf"):
		return TypePDF
	default:
		return TypeOther
	}
}

var contentTypesByExt = map[string]string{
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".pdf":  "application/pdf",
}

// ProbeContentType maps a stored name to the content type it is served with.
func ProbeContentType(name string) string {
	if ct, ok := contentTypesByExt[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ExtensionFor picks the stored extension for a fetched body from its
// declared content type, falling back to .png.
func ExtensionFor(contentType string) string {
	switch mediaType(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".png"
	}
}

func normalizeContentType(ct string) string {
	return strings.ToLower(strings.TrimSpace(ct))
}

// mediaType drops parameters such as charset.
func mediaType(ct string) string {
	ct = normalizeContentType(ct)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}
