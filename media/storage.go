// Package media stores uploaded product images on local disk.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageSize bounds a single upload.
const MaxImageSize = 5 << 20

var (
	ErrNotImage = errors.New("Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	ErrTooLarge = fmt.Errorf("Upload a file no larger than %d MB.", MaxImageSize>>20)
)

var imageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type Storage struct {
	root      string
	urlPrefix string
}

func NewStorage(root, urlPrefix string) *Storage {
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Storage{root: root, urlPrefix: urlPrefix}
}

func (s *Storage) Root() string {
	return s.root
}

// SaveImage writes the image read from r under dir and returns its path
// relative to the storage root, always with forward slashes.
func (s *Storage) SaveImage(r io.Reader, dir string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), imageTypes...) {
		return "", ErrNotImage
	}

	rel := path.Join(dir, uuid.NewString()+mtype.Extension())
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return rel, nil
}

// URL returns the public URL of a stored file, or "" for an empty path.
func (s *Storage) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return s.urlPrefix + strings.TrimPrefix(rel, "/")
}

// Remove deletes a stored file. Missing files are not an error.
func (s *Storage) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	clean := path.Clean("/" + rel)[1:]
	if clean == "" || clean != strings.TrimPrefix(rel, "/") {
		return fmt.Errorf("refusing to remove %q", rel)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", rel, err)
	}
	return nil
}
