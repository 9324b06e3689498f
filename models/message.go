package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// AttachmentKind is the single discriminant of a message body. A text
// message carries no file; every other kind carries a FileURL.
type AttachmentKind string

const (
	KindText     AttachmentKind = "text"
	KindImage    AttachmentKind = "image"
	KindVideo    AttachmentKind = "video"
	KindDocument AttachmentKind = "document"
	KindOther    AttachmentKind = "other"
)

const maxTextLength = 2000

// Message is one direct message. Everything except Seen/SeenAt is fixed at
// creation; those two flip from unset to set exactly once.
type Message struct {
	ID         string         `json:"_id"`
	SenderID   string         `json:"senderId"`
	ReceiverID string         `json:"receiverId"`
	Text       string         `json:"text,omitempty"`
	Kind       AttachmentKind `json:"kind"`
	FileURL    string         `json:"fileUrl,omitempty"`
	Seen       bool           `json:"seen"`
	SeenAt     *time.Time     `json:"seenAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// HasAttachment reports whether the message carries a file.
func (m *Message) HasAttachment() bool {
	return m.Kind != KindText && m.FileURL != ""
}

// ParseAttachmentKind maps the loose fileType tags clients send ("pdf",
// "raw", MIME majors, ...) onto the closed set of kinds.
func ParseAttachmentKind(tag string) AttachmentKind {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexByte(tag, '/'); i >= 0 {
		return KindFromMIME(tag)
	}

	switch tag {
	case "", "text":
		return KindText
	case "image":
		return KindImage
	case "video":
		return KindVideo
	case "document", "pdf", "doc", "docx", "application":
		return KindDocument
	default:
		return KindOther
	}
}

// KindFromMIME classifies an uploaded file by its content type.
func KindFromMIME(mime string) AttachmentKind {
	mime = strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case mime == "application/pdf",
		mime == "text/plain",
		mime == "application/msword",
		strings.HasPrefix(mime, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(mime, "application/vnd.oasis.opendocument"):
		return KindDocument
	default:
		return KindOther
	}
}

// NormalizeAttachment folds the legacy document fields into (kind, url).
// Older records stored images in a dedicated "image" field; newer ones use
// fileUrl + fileType.
func NormalizeAttachment(fileType, fileURL, legacyImage string) (AttachmentKind, string) {
	if fileURL == "" && legacyImage != "" {
		return KindImage, legacyImage
	}
	if fileURL == "" {
		return KindText, ""
	}

	kind := ParseAttachmentKind(fileType)
	if kind == KindText {
		// a file with no usable tag
		kind = KindOther
	}
	return kind, fileURL
}

// CreateMessageRequest is the body of POST /api/messages/{userId}.
// Content and Image are accepted from older clients.
type CreateMessageRequest struct {
	Text     string `json:"text"`
	Content  string `json:"content,omitempty"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
	Image    string `json:"image,omitempty"`

	Kind AttachmentKind `json:"-"` // set by Validate
}

func (r *CreateMessageRequest) Validate() error {
	if r.Text == "" {
		r.Text = r.Content
	}
	r.Text = strings.TrimSpace(r.Text)
	r.FileURL = strings.TrimSpace(r.FileURL)

	r.Kind, r.FileURL = NormalizeAttachment(r.FileType, r.FileURL, strings.TrimSpace(r.Image))

	if r.Text == "" && r.FileURL == "" {
		return fmt.Errorf("message text or attachment is required")
	}
	if utf8.RuneCountInString(r.Text) > maxTextLength {
		return fmt.Errorf("message text must be at most %d characters", maxTextLength)
	}
	return nil
}
