package util

import (
	"fmt"
	"strings"
)

// IsPartialFile reports whether a filename looks like an incomplete download
// artifact. Partial files are excluded from all downstream processing.
func IsPartialFile(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".part") || strings.HasSuffix(lower, ".crdownload")
}

// HumanSize renders a byte count the way item descriptions expect it: raw bytes
// up to 1024, then KB and MB with two decimals. The exact strings are part of the
// published item text, so this does not use a general-purpose formatter.
func HumanSize(size int64) string {
	if size > 1024*1024 {
		return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
	}
	if size > 1024 {
		return fmt.Sprintf("%.2f KB", float64(size)/1024)
	}
	return fmt.Sprintf("%d bytes", size)
}
