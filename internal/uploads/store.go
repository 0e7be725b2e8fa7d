package uploads

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Store keeps message attachments on local disk and hands out the
// public URLs they are served under.
type Store struct {
	dir     string
	baseURL string
}

// NewStore ensures the upload directory exists.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the on-disk directory for static serving.
func (s *Store) Dir() string { return s.dir }

// SaveFromForm persists the multipart file under the given field, if
// present, and returns its public URL. A missing file is not an error.
func (s *Store) SaveFromForm(c *fiber.Ctx, field string) (*string, error) {
	header, err := c.FormFile(field)
	if err != nil || header == nil {
		return nil, nil
	}

	name := sanitizeFilename(header.Filename)
	if name == "" {
		name = uuid.NewString()
	}
	if err := c.SaveFile(header, filepath.Join(s.dir, name)); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	url := s.baseURL + "/uploads/" + name
	return &url, nil
}

// sanitizeFilename strips directory components and characters that
// could escape the uploads directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
