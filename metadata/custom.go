package metadata

import (
	"strings"

	"github.com/pkg/errors"
)

// Custom holds user-supplied metadata overrides. Values are a string, or a
// []string when the same key was supplied with multiple distinct values. A
// repeated identical value collapses back to a scalar; this matches what the
// storage service expects for repeated metadata headers.
type Custom map[string]interface{}

// ParseKeyValues parses repeated `key:value` pairs from the command line.
func ParseKeyValues(pairs []string) (Custom, error) {
	custom := make(Custom)
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, ":")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, errors.Errorf("metadata: %q is not in key:value form", pair)
		}
		custom.Add(key, value)
	}
	return custom, nil
}

// Add records a value for key. Last write wins, except that distinct values for
// the same key accumulate into a list.
func (c Custom) Add(key string, value string) {
	existing, ok := c[key]
	if !ok {
		c[key] = value
		return
	}
	switch x := existing.(type) {
	case string:
		if x == value {
			return
		}
		c[key] = []string{x, value}
	case []string:
		for _, v := range x {
			if v == value {
				return
			}
		}
		c[key] = append(x, value)
	}
}
