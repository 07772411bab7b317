package upload

import (
	"context"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func header(contentType string, size int64) *multipart.FileHeader {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	return &multipart.FileHeader{Filename: "f", Header: h, Size: size}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(header("image/png", 1024)))
	assert.ErrorIs(t, Check(header("image/jpeg", MaxImageSize+1)), ErrTooLarge)
	assert.ErrorIs(t, Check(header("application/pdf", 10)), ErrNotImage)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Upload(context.Background(), strings.NewReader("x"), Options{})
	assert.ErrorIs(t, err, ErrDisabled)
}
