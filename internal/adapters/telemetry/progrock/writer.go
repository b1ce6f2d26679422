// Package progrock records build progress as a progrock tape. Each target is
// a vertex, and every status update is appended to a JSON lines file.
package progrock

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vito/progrock"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
	"google.golang.org/protobuf/encoding/protojson"
)

// JSONLWriter is a progrock.Writer that appends each update as one protojson line.
type JSONLWriter struct {
	mu  sync.Mutex
	out io.WriteCloser
}

var _ progrock.Writer = (*JSONLWriter)(nil)

// NewJSONLWriter wraps out.
func NewJSONLWriter(out io.WriteCloser) *JSONLWriter {
	return &JSONLWriter{out: out}
}

// CreateJSONLWriter truncates or creates the file at path.
func CreateJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "create progress directory"), "path", path)
	}
	f, err := os.Create(path) //nolint:gosec // path is under the private state directory
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "create progress file"), "path", path)
	}
	return NewJSONLWriter(f), nil
}

// WriteStatus appends u.
func (w *JSONLWriter) WriteStatus(u *progrock.StatusUpdate) error {
	data, err := protojson.Marshal(u)
	if err != nil {
		return zerr.Wrap(err, "encode progress update")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err = w.out.Write(append(data, '\n'))
	return err
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Close()
}
