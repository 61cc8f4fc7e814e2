// Package storage keeps uploaded order images on local disk and serves them
// under /uploads.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL path uploaded files are served under.
const PublicPrefix = "/uploads/"

var ErrUnsupportedType = errors.New("only jpeg, png, gif and webp images are accepted")

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Uploads struct {
	dir string
}

// NewUploads creates dir if needed.
func NewUploads(dir string) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Uploads{dir: dir}, nil
}

func (u *Uploads) Dir() string { return u.dir }

// Save stores one uploaded file under a random name and returns its public
// path. The type is taken from the file content, not the client header.
func (u *Uploads) Save(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	ext, ok := allowedTypes[http.DetectContentType(head[:n])]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := uuid.NewString() + ext
	dst, err := os.OpenFile(filepath.Join(u.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := dst.Write(head[:n]); err == nil {
		_, err = io.Copy(dst, src)
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(filepath.Join(u.dir, name))
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return PublicPrefix + name, nil
}

// Owns reports whether publicPath names a file this store wrote.
func (u *Uploads) Owns(publicPath string) bool {
	name, ok := strings.CutPrefix(publicPath, PublicPrefix)
	return ok && name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".")
}

// Remove deletes files this store owns and ignores every other reference,
// such as data URIs or external URLs. Failures are logged, not returned.
func (u *Uploads) Remove(publicPaths ...string) {
	for _, p := range publicPaths {
		if !u.Owns(p) {
			continue
		}
		name := strings.TrimPrefix(p, PublicPrefix)
		if err := os.Remove(filepath.Join(u.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove upload", "path", p, "error", err)
		}
	}
}
