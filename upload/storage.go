package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage persists uploaded files. Save fills in the storage-specific File
// fields and must not leave partial data behind when it fails.
type Storage interface {
	Save(f *File, r io.Reader) error
	Remove(f *File) error
}

// DiskStorage writes files into Dir, creating it on demand.
type DiskStorage struct {
	Dir string

	// Filename returns the stored file name. Defaults to UniqueFilename.
	Filename func(f *File) string
}

// UniqueFilename returns "<field>-<unix millis>-<random><ext>", keeping the
// extension of the original file name.
func UniqueFilename(f *File) string {
	field := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, f.FieldName)

	ext := filepath.Ext(filepath.Base(f.OriginalName))

	return fmt.Sprintf("%s-%d-%d%s", field, time.Now().UnixMilli(), uuid.New().ID()%1e9, ext)
}

// Save streams r into a new file under Dir.
func (s *DiskStorage) Save(f *File, r io.Reader) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("upload: create directory: %w", err)
	}

	name := UniqueFilename
	if s.Filename != nil {
		name = s.Filename
	}

	f.Destination = s.Dir
	f.Filename = name(f)
	f.Path = filepath.Join(s.Dir, f.Filename)

	out, err := os.OpenFile(f.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("upload: create file: %w", err)
	}

	n, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	f.Size = n

	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(f.Path)
		return err
	}

	return nil
}

// Remove deletes the stored file.
func (s *DiskStorage) Remove(f *File) error {
	if f.Path == "" {
		return nil
	}

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// MemoryStorage keeps file contents in File.Buffer.
type MemoryStorage struct{}

// Save reads r into f.Buffer.
func (MemoryStorage) Save(f *File, r io.Reader) error {
	var buf bytes.Buffer
	n, err := buf.ReadFrom(r)
	if err != nil {
		return err
	}

	f.Buffer = buf.Bytes()
	f.Size = n

	return nil
}

// Remove drops the buffered contents.
func (MemoryStorage) Remove(f *File) error {
	f.Buffer = nil
	return nil
}
