package util

import (
	"regexp"
	"strings"
)

var identifierUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
var identifierDashes = regexp.MustCompile(`-{2,}`)
var filenameUnsafe = regexp.MustCompile(`[<>:"\\|?*\x00-\x1f/]`)

const maxFilenameLength = 200

// SanitizeIdentifier normalizes free text into an archive.org item identifier:
// every character outside [A-Za-z0-9_-] becomes '-', runs of '-' collapse to one,
// and leading/trailing '-' are stripped. The result may be empty; callers must
// guard against empty identifiers.
func SanitizeIdentifier(raw string) string {
	s := identifierUnsafe.ReplaceAllString(raw, "-")
	s = identifierDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SanitizeFilename strips filesystem-reserved characters and path separators and
// truncates to a length most filesystems accept. Truncation happens on rune
// boundaries so a multi-byte name never becomes invalid UTF-8.
func SanitizeFilename(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "/", "_")
	s = filenameUnsafe.ReplaceAllString(s, "_")
	if runes := []rune(s); len(runes) > maxFilenameLength {
		s = string(runes[:maxFilenameLength])
	}
	return s
}
