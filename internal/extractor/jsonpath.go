// Package extractor pulls fields out of sampled server frames.
package extractor

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Func turns a frame into the line to print. ok is false when the frame
// should be skipped.
type Func func(frame []byte) (line string, ok bool)

// JSONPath compiles a gjson path with support for $.field and field syntax.
// A bare "$" selects the whole document.
func JSONPath(path string) (Func, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty JSON path")
	}
	if path[0] == '$' {
		switch {
		case len(path) == 1:
			path = "@this"
		case path[1] == '.':
			path = path[2:]
		default:
			return nil, fmt.Errorf("invalid JSON path %q", path)
		}
	}
	if path == "" {
		return nil, fmt.Errorf("empty JSON path")
	}

	return func(frame []byte) (string, bool) {
		if !gjson.ValidBytes(frame) {
			return "", false
		}
		result := gjson.GetBytes(frame, path)
		if !result.Exists() {
			return "", false
		}
		return result.String(), true
	}, nil
}
