package student

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PublicPrefix is where stored photos are served from
const PublicPrefix = "/uploads/"

var allowedPhotoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// PhotoStore saves profile photos on local disk
type PhotoStore struct {
	dir      string
	maxBytes int64
}

// NewPhotoStore creates the upload directory if needed
func NewPhotoStore(dir string, maxBytes int64) (*PhotoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &PhotoStore{dir: dir, maxBytes: maxBytes}, nil
}

// Dir is the directory photos are written to
func (p *PhotoStore) Dir() string { return p.dir }

// MaxBytes is the largest accepted photo
func (p *PhotoStore) MaxBytes() int64 { return p.maxBytes }

// Save sniffs the content type, enforces the size limit and writes the photo.
// It returns the public path of the stored file.
func (p *PhotoStore) Save(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return "", status.Error(codes.InvalidArgument, "Could not read upload")
	}
	if int64(len(data)) > p.maxBytes {
		return "", status.Errorf(codes.InvalidArgument, "File too large. Max size is %d bytes", p.maxBytes)
	}

	detected := mimetype.Detect(data)
	ext, ok := allowedPhotoTypes[detected.String()]
	if !ok {
		return "", status.Error(codes.InvalidArgument, "Images only (jpeg, jpg, png)")
	}

	name := "student-" + uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(p.dir, name), data, 0o644); err != nil {
		return "", status.Error(codes.Internal, "Server Error")
	}
	return PublicPrefix + name, nil
}

// Remove deletes a previously stored photo by its public path
func (p *PhotoStore) Remove(publicPath string) {
	if publicPath == "" {
		return
	}
	_ = os.Remove(filepath.Join(p.dir, filepath.Base(publicPath)))
}
