package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes an uploaded filename safe to store. Path
// components and characters invalid on common filesystems are stripped, so
// a crafted name cannot escape the library directory.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)
	filename = strings.TrimLeft(filename, ".")

	// Limit length (most filesystems support 255, but leave room for extension)
	if len(filename) > 200 {
		filename = strings.TrimSpace(filename[:200])
	}

	if filename == "" {
		filename = "Untitled"
	}
	return filename
}

// KnownBookExtensions contains file extensions the reader can ingest.
var KnownBookExtensions = []string{
	".txt",
	".md",
	".markdown",
	".text",
}

// IsBookFile reports whether a filename looks like an importable book.
// The watch folder uses this to skip sidecar files and partial downloads.
func IsBookFile(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range KnownBookExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
