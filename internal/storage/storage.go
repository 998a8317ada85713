package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/spf13/afero"
)

const (
	ImagesDir    = "images"
	DocumentsDir = "documents"

	maxStemLength = 80
)

var (
	ErrFileTooLarge = errors.New("file exceeds the upload size limit")
	ErrInvalidPath  = errors.New("invalid storage path")
)

// AllowList is a case-insensitive set of accepted file extensions
type AllowList map[string]struct{}

// NewAllowList builds an AllowList from extensions without the leading dot
func NewAllowList(exts ...string) AllowList {
	list := make(AllowList, len(exts))
	for _, ext := range exts {
		list[strings.ToLower(ext)] = struct{}{}
	}
	return list
}

var (
	ImageExtensions    = NewAllowList("png", "jpg", "jpeg", "gif")
	DocumentExtensions = NewAllowList("pdf", "png", "jpg", "jpeg")
)

// Allows reports whether filename carries an accepted extension
func (a AllowList) Allows(filename string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	_, ok := a[ext]
	return ok
}

// Extension returns the lower-cased extension of filename without the dot
func Extension(filename string) string {
	base := baseName(filename)
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

func baseName(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	return filename
}

// SanitizeFilename reduces a client-supplied name to a safe slug plus extension.
// Directory components and control characters never survive.
func SanitizeFilename(filename string) string {
	base := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, baseName(filename))

	ext := Extension(base)
	stem := base
	if ext != "" {
		stem = base[:len(base)-len(ext)-1]
	}

	stem = slug.Make(stem)
	if len(stem) > maxStemLength {
		stem = strings.Trim(stem[:maxStemLength], "-")
	}
	if stem == "" {
		stem = "file"
	}

	ext = slug.Make(ext)
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// FileStore persists uploaded files
type FileStore interface {
	Save(ctx context.Context, dir, filename string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// Store keeps uploads on an afero filesystem
type Store struct {
	fs       afero.Fs
	maxBytes int64
}

// NewStore wraps fs. A maxBytes of zero disables the size limit.
func NewStore(fs afero.Fs, maxBytes int64) *Store {
	return &Store{fs: fs, maxBytes: maxBytes}
}

// NewLocalStore stores uploads on disk under root
func NewLocalStore(root string, maxBytes int64) (*Store, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return NewStore(afero.NewBasePathFs(osFs, root), maxBytes), nil
}

// Save writes r under dir with a unique, sanitized name and returns the stored path.
// The uuid prefix keeps unrelated uploads that share a filename apart.
func (s *Store) Save(ctx context.Context, dir, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	stored := path.Join(dir, uuid.NewString()+"-"+SanitizeFilename(filename))

	f, err := s.fs.OpenFile(stored, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}

	written, err := io.Copy(f, src)
	if err == nil && s.maxBytes > 0 && written > s.maxBytes {
		err = ErrFileTooLarge
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}

	if err != nil {
		_ = s.fs.Remove(stored)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return stored, nil
}

// Delete removes a stored file. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := path.Clean("/" + p)[1:]
	if clean == "" || clean != p {
		return ErrInvalidPath
	}

	if err := s.fs.Remove(clean); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Handler serves the files stored under dir
func (s *Store) Handler(dir string) http.Handler {
	return http.FileServer(afero.NewHttpFs(afero.NewBasePathFs(s.fs, dir)).Dir("/"))
}
