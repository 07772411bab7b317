// Package upload stores user images on Cloudinary.
package upload

import (
	"context"
	"io"
	"mime/multipart"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/pkg/errors"
)

const MaxImageSize = 4 << 20

var (
	ErrTooLarge = errors.New("image exceeds 4MB")
	ErrNotImage = errors.New("only image uploads are allowed")
	ErrDisabled = errors.New("image uploads are not configured")
)

// Options controls where an upload lands.
type Options struct {
	Folder         string
	PublicID       string
	Transformation string
}

// Uploader stores file and returns its public https URL.
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, opts Options) (string, error)
}

// Check rejects headers that are not images or larger than MaxImageSize.
func Check(h *multipart.FileHeader) error {
	if h.Size > MaxImageSize {
		return ErrTooLarge
	}
	if !strings.HasPrefix(h.Header.Get("Content-Type"), "image/") {
		return ErrNotImage
	}
	return nil
}

type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinary builds an uploader from a cloudinary:// URL.
func NewCloudinary(url string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "cloudinary config")
	}
	return &Cloudinary{cld: cld}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, file io.Reader, opts Options) (string, error) {
	res, err := c.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         opts.Folder,
		PublicID:       opts.PublicID,
		Transformation: opts.Transformation,
		ResourceType:   "image",
	})
	if err != nil {
		return "", errors.Wrap(err, "cloudinary upload")
	}
	if res.Error.Message != "" {
		return "", errors.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}

// Disabled is used when no Cloudinary credentials are configured.
type Disabled struct{}

func (Disabled) Upload(ctx context.Context, file io.Reader, opts Options) (string, error) {
	return "", ErrDisabled
}
