// Package cas implements the implicit input record store.
package cas

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.ImplicitInputStore using a file-per-target strategy.
// Each record is a text file with one input per line below the target's
// private state directory.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the recorded inputs of t.
func (s *Store) Get(root string, t domain.Target) ([]string, bool, error) {
	filename := domain.RecordPath(root, t)
	//nolint:gosec // Path is derived from the build root and a sanitized target id
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrRecordReadFailed.Error()), "target", t.Base().Name())
	}

	inputs, err := decode(data)
	if err != nil {
		return nil, false, zerr.With(zerr.Wrap(err, domain.ErrRecordReadFailed.Error()), "target", t.Base().Name())
	}
	return inputs, true, nil
}

// Put records inputs for t. The file is replaced atomically.
func (s *Store) Put(root string, t domain.Target, inputs []string) error {
	filename := domain.RecordPath(root, t)
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRecordWriteFailed.Error()), "target", t.Base().Name())
	}

	tmp, err := os.CreateTemp(dir, RecordTempPattern)
	if err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrRecordWriteFailed.Error()), "target", t.Base().Name())
	}
	_, werr := tmp.Write(encode(inputs))
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.With(zerr.Wrap(err, domain.ErrRecordWriteFailed.Error()), "target", t.Base().Name())
	}
	if err := os.Chmod(tmp.Name(), domain.FilePerm); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.With(zerr.Wrap(err, domain.ErrRecordWriteFailed.Error()), "target", t.Base().Name())
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.With(zerr.Wrap(err, domain.ErrRecordWriteFailed.Error()), "target", t.Base().Name())
	}
	return nil
}

// Delete removes the record of t.
func (s *Store) Delete(root string, t domain.Target) error {
	err := os.Remove(domain.RecordPath(root, t))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrRecordDeleteFailed.Error()), "target", t.Base().Name())
	}
	return nil
}

// RecordTempPattern names temporary files written next to a record.
const RecordTempPattern = ".record-*"

// encode writes one input per line. Inputs that contain a line break or start
// with a quote are written quoted.
func encode(inputs []string) []byte {
	var buf bytes.Buffer
	for _, in := range inputs {
		if strings.ContainsAny(in, "\r\n") || strings.HasPrefix(in, "\"") {
			in = strconv.Quote(in)
		}
		buf.WriteString(in)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func decode(data []byte) ([]string, error) {
	inputs := []string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "\"") {
			unq, err := strconv.Unquote(line)
			if err != nil {
				return nil, zerr.With(err, "line", line)
			}
			line = unq
		}
		inputs = append(inputs, line)
	}
	return inputs, sc.Err()
}
