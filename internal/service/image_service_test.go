package service

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quill/internal/config"
	"quill/internal/models"
	"quill/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_SaveWritesJPEGAndWebP(t *testing.T) {
	cfg := &config.Config{UploadDir: t.TempDir(), ImageMaxUploadBytes: 1 << 20, ImageMaxDimension: 300}
	svc := NewImageService(cfg)

	publicPath, err := svc.Save(context.Background(), UploadImageInput{
		Filename:    "cat.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 1200, 600),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(publicPath, "/static/images/"), publicPath)
	require.True(t, strings.HasSuffix(publicPath, ".jpg"), publicPath)

	name := strings.TrimSuffix(filepath.Base(publicPath), ".jpg")
	jpgPath := filepath.Join(cfg.UploadDir, "images", name+".jpg")
	webpPath := filepath.Join(cfg.UploadDir, "images", name+".webp")

	data, err := os.ReadFile(jpgPath)
	require.NoError(t, err)
	_, err = os.Stat(webpPath)
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, decoded.Bounds().Dx())
	assert.Equal(t, 150, decoded.Bounds().Dy())
}

func TestImageService_SaveKeepsSmallImages(t *testing.T) {
	cfg := &config.Config{UploadDir: t.TempDir()}
	svc := NewImageService(cfg)

	publicPath, err := svc.Save(context.Background(), UploadImageInput{Filename: "dot.png", Content: testutil.TinyPNG(t, 20, 10)})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(cfg.UploadDir, "images", filepath.Base(publicPath)))
	require.NoError(t, err)
	decoded, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 20, decoded.Bounds().Dx())
}

func TestImageService_SaveRejectsBadInput(t *testing.T) {
	svc := NewImageService(&config.Config{UploadDir: t.TempDir(), ImageMaxUploadBytes: 64})

	tests := []struct {
		name    string
		in      UploadImageInput
		wantMsg string
	}{
		{name: "empty", in: UploadImageInput{}, wantMsg: "No file uploaded"},
		{name: "too large", in: UploadImageInput{Content: bytes.Repeat([]byte{1}, 65)}, wantMsg: "File too large"},
		{name: "not an image", in: UploadImageInput{Content: []byte("plain text")}, wantMsg: "Invalid image type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestImageService_SaveRejectsContentTypeMismatch(t *testing.T) {
	svc := NewImageService(&config.Config{UploadDir: t.TempDir()})

	_, err := svc.Save(context.Background(), UploadImageInput{
		Filename:    "fake.gif",
		ContentType: "image/gif",
		Content:     testutil.TinyPNG(t, 4, 4),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content type mismatch")
}

func TestResizeToFit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 1000))

	out := resizeToFit(src, 200, 200)
	assert.Equal(t, 80, out.Bounds().Dx())
	assert.Equal(t, 200, out.Bounds().Dy())

	assert.Same(t, src, resizeToFit(src, 2000, 2000).(*image.RGBA))
}
