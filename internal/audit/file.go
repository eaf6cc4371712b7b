package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileRecorder writes each entry to <dir>/<discussion>/cycle_<n>_<stage>.json.
// A repeated stage within a cycle overwrites the previous file.
type FileRecorder struct {
	dir string
}

func NewFileRecorder(dir string) *FileRecorder {
	return &FileRecorder{dir: dir}
}

func (r *FileRecorder) Record(_ context.Context, e Entry) error {
	path := r.Path(e.DiscussionID, e.Cycle, e.Stage)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}
	raw, err := json.MarshalIndent(e.Output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s output: %w", e.Stage, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("writing audit file: %w", err)
	}
	return nil
}

// Path returns the file an entry is written to.
func (r *FileRecorder) Path(discussionID string, cycle int, stage string) string {
	return filepath.Join(r.dir, safeName(discussionID), fmt.Sprintf("cycle_%03d_%s.json", cycle, stage))
}

// safeName turns a discussion id into one directory name. Bytes outside
// [A-Za-z0-9-] become _XX, '_' included, so distinct ids never share a
// directory and no id can climb out of the audit root.
func safeName(s string) string {
	if s == "" {
		return "_"
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "_%02X", c)
		}
	}
	return sb.String()
}
