package services

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"student-chat/internal/config"
	"student-chat/internal/models"
)

var dangerousExtensions = map[string]bool{
	".exe": true,
	".bat": true,
	".cmd": true,
	".scr": true,
	".pif": true,
	".com": true,
	".jar": true,
}

// ValidateContent trims content and enforces it is non-empty and within max runes.
func ValidateContent(content string, max int) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", &ValidationError{Field: "content", Message: "message must not be empty"}
	}
	if utf8.RuneCountInString(trimmed) > max {
		return "", &ValidationError{Field: "content", Message: fmt.Sprintf("message is too long (max. %d characters)", max)}
	}
	return trimmed, nil
}

// ValidateFile checks a descriptor from the upload collaborator against the
// size limit and MIME allow-list.
func ValidateFile(file models.FileDescriptor, limits config.MessageConfig) error {
	if err := models.Validate(file); err != nil {
		return err
	}
	if file.Size <= 0 {
		return &ValidationError{Field: "size", Message: "file is empty"}
	}
	if file.Size > limits.MaxFileSize {
		return &ValidationError{Field: "size", Message: fmt.Sprintf("file is too large (max. %d bytes)", limits.MaxFileSize)}
	}
	if !allowedType(file.MimeType, limits.AllowedFileTypes) {
		return &ValidationError{Field: "mimeType", Message: fmt.Sprintf("file type %s is not allowed", file.MimeType)}
	}
	if strings.ContainsAny(file.Name, `<>:"/\|?*`) || strings.IndexFunc(file.Name, isControl) >= 0 {
		return &ValidationError{Field: "name", Message: "file name contains forbidden characters"}
	}
	if dangerousExtensions[strings.ToLower(path.Ext(file.Name))] {
		return &ValidationError{Field: "name", Message: "executable files are not allowed"}
	}
	return nil
}

func allowedType(mime string, allowed []string) bool {
	for _, t := range allowed {
		if strings.EqualFold(t, mime) {
			return true
		}
	}
	return false
}

func isControl(r rune) bool {
	return r < 0x20
}
