// Package upload parses multipart/form-data request bodies into stored files
// and form fields, enforcing per-request limits. Stages built by an Uploader
// are registered on routes:
//
//	up, err := upload.New(upload.Config{
//	    Storage: &upload.DiskStorage{Dir: "uploads"},
//	    Limits:  upload.Limits{FileSize: 5 << 20, Files: 5},
//	})
//	r.Post("/upload", handler).Use(up.Single("avatar"))
//
// Limit violations fail the request with *Error, which maps to 400. Files
// already stored for the failed request are removed.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vitalvas/waypoint/mux"
	"go.uber.org/zap"
)

const filesKey = "upload.files"

// DefaultFieldSize caps a single text field when Limits.FieldSize is zero.
const DefaultFieldSize = 1 << 20

// sniffLen is the number of leading bytes inspected to detect a MIME type.
const sniffLen = 3072

// Limits bounds a multipart body. Zero values mean no limit, except
// FieldSize which defaults to DefaultFieldSize.
type Limits struct {
	FileSize  int64
	Files     int
	Fields    int
	FieldSize int64
	Parts     int
}

// File describes an uploaded file.
type File struct {
	FieldName    string `json:"fieldname"`
	OriginalName string `json:"originalname"`
	MimeType     string `json:"mimetype"`
	Size         int64  `json:"size"`

	// Set by DiskStorage.
	Destination string `json:"destination,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Path        string `json:"path,omitempty"`

	// Set by MemoryStorage.
	Buffer []byte `json:"-"`
}

// Config configures an Uploader.
type Config struct {
	Storage Storage
	Limits  Limits

	// FileFilter decides whether a file is stored. Rejected files are
	// skipped; a non-nil error fails the request.
	FileFilter func(c *mux.Context, f *File) (bool, error)
}

// Field names a file field and the number of files it accepts.
type Field struct {
	Name     string
	MaxCount int
}

// Uploader builds upload stages sharing storage and limits.
type Uploader struct {
	storage Storage
	limits  Limits
	filter  func(c *mux.Context, f *File) (bool, error)
}

// New validates cfg and returns an Uploader.
func New(cfg Config) (*Uploader, error) {
	if cfg.Storage == nil {
		return nil, ErrNoStorage
	}

	limits := cfg.Limits
	if limits.FieldSize <= 0 {
		limits.FieldSize = DefaultFieldSize
	}

	return &Uploader{storage: cfg.Storage, limits: limits, filter: cfg.FileFilter}, nil
}

// acceptance describes which file fields a stage accepts. A nil fields map
// accepts any field.
type acceptance struct {
	fields map[string]int
}

func (a acceptance) allows(field string, seen int) bool {
	if a.fields == nil {
		return true
	}

	max, ok := a.fields[field]

	return ok && seen < max
}

// Single accepts one file in field. It is available through FileFrom.
func (u *Uploader) Single(field string) mux.StageFunc {
	return u.stage(acceptance{fields: map[string]int{field: 1}})
}

// Array accepts up to max files in field.
func (u *Uploader) Array(field string, max int) mux.StageFunc {
	if max < 1 {
		panic(ErrInvalidMaxCount)
	}

	return u.stage(acceptance{fields: map[string]int{field: max}})
}

// Fields accepts files in several fields, each with its own maximum.
func (u *Uploader) Fields(fields ...Field) mux.StageFunc {
	accepted := make(map[string]int, len(fields))
	for _, f := range fields {
		if f.MaxCount < 1 {
			panic(fmt.Errorf("%w: field %q", ErrInvalidMaxCount, f.Name))
		}
		accepted[f.Name] = f.MaxCount
	}

	return u.stage(acceptance{fields: accepted})
}

// Any accepts files in any field.
func (u *Uploader) Any() mux.StageFunc {
	return u.stage(acceptance{})
}

// None accepts text fields only; any file fails the request.
func (u *Uploader) None() mux.StageFunc {
	return u.stage(acceptance{fields: map[string]int{}})
}

func (u *Uploader) stage(accept acceptance) mux.StageFunc {
	return func(c *mux.Context) mux.Result {
		if c.ContentType() != "multipart/form-data" {
			return mux.Next()
		}

		mr, err := c.Request.MultipartReader()
		if err != nil {
			return mux.Fail(mux.NewHTTPError(http.StatusBadRequest, "malformed multipart body").Wrap(err))
		}

		files, form, err := u.parse(c, mr, accept)
		if err != nil {
			u.cleanup(c, files)
			return mux.Fail(err)
		}

		c.SetForm(form)
		c.Set(filesKey, files)

		return mux.Next()
	}
}

func (u *Uploader) parse(c *mux.Context, mr *multipart.Reader, accept acceptance) ([]*File, url.Values, error) {
	var (
		files      []*File
		form       = url.Values{}
		parts      int
		fields     int
		perField   = make(map[string]int)
		totalFiles int
	)

	for {
		part, err := mr.NextPart()
		// Only a bare io.EOF marks the final boundary; truncated bodies
		// report a wrapped one.
		if err == io.EOF {
			return files, form, nil
		}
		if err != nil {
			return files, nil, partError(err)
		}

		parts++
		if u.limits.Parts > 0 && parts > u.limits.Parts {
			part.Close()
			return files, nil, limitError(CodePartCount, "")
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" {
			fields++
			if u.limits.Fields > 0 && fields > u.limits.Fields {
				part.Close()
				return files, nil, limitError(CodeFieldCount, "")
			}

			value, err := io.ReadAll(io.LimitReader(part, u.limits.FieldSize+1))
			part.Close()
			if err != nil {
				return files, nil, partError(err)
			}
			if int64(len(value)) > u.limits.FieldSize {
				return files, nil, limitError(CodeFieldValue, name)
			}

			form.Add(name, string(value))
			continue
		}

		totalFiles++
		if u.limits.Files > 0 && totalFiles > u.limits.Files {
			part.Close()
			return files, nil, limitError(CodeFileCount, name)
		}

		if !accept.allows(name, perField[name]) {
			part.Close()
			return files, nil, limitError(CodeUnexpectedFile, name)
		}

		f, err := u.store(c, part)
		part.Close()
		if err != nil {
			return files, nil, err
		}
		if f == nil {
			continue
		}

		perField[name]++
		files = append(files, f)
	}
}

// store saves a file part. It returns nil when the filter rejects the file.
func (u *Uploader) store(c *mux.Context, part *multipart.Part) (*File, error) {
	f := &File{
		FieldName:    part.FormName(),
		OriginalName: part.FileName(),
		MimeType:     part.Header.Get("Content-Type"),
	}

	var r io.Reader = part
	if f.MimeType == "" || f.MimeType == "application/octet-stream" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(part, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, partError(err)
		}
		head = head[:n]

		f.MimeType = mimetype.Detect(head).String()
		r = io.MultiReader(bytes.NewReader(head), part)
	}

	if u.filter != nil {
		ok, err := u.filter(c, f)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}

	pr := newPartReader(r, u.limits.FileSize)

	if err := u.storage.Save(f, pr); err != nil {
		switch {
		case errors.Is(err, errFileTooLarge):
			return nil, limitError(CodeFileSize, f.FieldName)
		case pr.err != nil:
			return nil, partError(pr.err)
		default:
			return nil, fmt.Errorf("upload: store %s: %w", f.OriginalName, err)
		}
	}

	return f, nil
}

func (u *Uploader) cleanup(c *mux.Context, files []*File) {
	for _, f := range files {
		if err := u.storage.Remove(f); err != nil {
			c.Logger().Warn("remove partial upload failed", zap.String("field", f.FieldName), zap.Error(err))
		}
	}
}

// partError keeps body limit and upload errors intact and reports anything
// else as a malformed body.
func partError(err error) error {
	var mbe *http.MaxBytesError
	var ue *Error
	if errors.As(err, &mbe) || errors.As(err, &ue) {
		return err
	}

	return mux.NewHTTPError(http.StatusBadRequest, "malformed multipart body").Wrap(err)
}

// partReader reads a file part and fails with errFileTooLarge once more
// than limit bytes are available. A limit of zero disables the check. Read
// errors of the part itself are kept in err so they can be told apart from
// storage failures.
type partReader struct {
	r         io.Reader
	limited   bool
	remaining int64
	err       error
}

func newPartReader(r io.Reader, limit int64) *partReader {
	return &partReader{r: r, limited: limit > 0, remaining: limit}
}

func (p *partReader) Read(b []byte) (int, error) {
	if p.limited {
		if p.remaining <= 0 {
			var probe [1]byte
			n, err := p.read(probe[:])
			if n > 0 {
				return 0, errFileTooLarge
			}
			return 0, err
		}

		if int64(len(b)) > p.remaining {
			b = b[:p.remaining]
		}
	}

	n, err := p.read(b)
	p.remaining -= int64(n)

	return n, err
}

func (p *partReader) read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && !errors.Is(err, io.EOF) {
		p.err = err
	}

	return n, err
}

// FileFrom returns the first file stored for the request, or nil.
func FileFrom(c *mux.Context) *File {
	if files := FilesFrom(c); len(files) > 0 {
		return files[0]
	}

	return nil
}

// FilesFrom returns the files stored for the request in arrival order.
func FilesFrom(c *mux.Context) []*File {
	v, _ := c.Get(filesKey)
	files, _ := v.([]*File)

	return files
}

// FieldFiles groups the stored files by field name.
func FieldFiles(c *mux.Context) map[string][]*File {
	grouped := make(map[string][]*File)
	for _, f := range FilesFrom(c) {
		grouped[f.FieldName] = append(grouped[f.FieldName], f)
	}

	return grouped
}
