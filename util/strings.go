package util

import (
	"strings"
)

func HasAnyPrefix(val string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(val, prefix) {
			return true
		}
	}
	return false
}

func HasAnySubstring(val string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(val, needle) {
			return true
		}
	}
	return false
}
