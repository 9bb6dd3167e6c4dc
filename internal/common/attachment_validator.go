package common

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// MaxAttachmentSize is the upload size cap for message attachments (10MB)
const MaxAttachmentSize = 10 * 1024 * 1024

// Attachment extensions accepted for message uploads
var allowedAttachmentExtensions = []string{
	".jpg", ".jpeg", ".png", ".pdf", ".doc", ".docx", ".gif", ".mp4",
}

var (
	// ErrUnsupportedAttachment is returned for a disallowed file extension
	ErrUnsupportedAttachment = fmt.Errorf("unsupported file extension: %w", ErrInvalidInput)

	// ErrAttachmentTooLarge is returned when an upload exceeds MaxAttachmentSize
	ErrAttachmentTooLarge = fmt.Errorf("file size cannot exceed 10MB: %w", ErrInvalidInput)
)

// ValidateAttachment checks a message attachment's extension and size.
// The extension check is case-insensitive.
func ValidateAttachment(filename string, size int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(allowedAttachmentExtensions, ext) {
		return ErrUnsupportedAttachment
	}
	if size > MaxAttachmentSize {
		return ErrAttachmentTooLarge
	}
	return nil
}
