package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// localExtensions are the only content types written to disk. The extension is
// picked from the sniffed type so static serving never sees client-chosen names.
var localExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// LocalUploader writes files under Dir and serves them from BaseURL + "/uploads".
// Used when Cloudinary credentials are not configured.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload stores r under folder. The filename is ignored.
func (u *LocalUploader) Upload(_ context.Context, r io.Reader, folder, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	mt := mimetype.Detect(data)
	ext, ok := localExtensions[mt.String()]
	if !ok {
		return "", fmt.Errorf("unsupported upload type %s", mt.String())
	}

	if err := os.MkdirAll(filepath.Join(u.Dir, folder), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(u.Dir, folder, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return fmt.Sprintf("%s/uploads/%s/%s", u.BaseURL, folder, name), nil
}

func (u *LocalUploader) Delete(_ context.Context, imageURL string) error {
	prefix := u.BaseURL + "/uploads/"
	if !strings.HasPrefix(imageURL, prefix) {
		return fmt.Errorf("not a local upload: %s", imageURL)
	}
	rel := filepath.Clean(strings.TrimPrefix(imageURL, prefix))
	if strings.HasPrefix(rel, "..") {
		return fmt.Errorf("invalid upload path: %s", imageURL)
	}
	if err := os.Remove(filepath.Join(u.Dir, rel)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
