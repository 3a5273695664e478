package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"quill/internal/config"
	"quill/internal/middleware"
	"quill/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageUploadDir      = "./uploads"
	DefaultImageMaxUploadBytes = 5 << 20
	DefaultImageMaxDimension   = 1600
	JPEGQuality                = 82
	WebPQuality                = 70

	// imagesPrefix is the URL under which UploadDir/images is served.
	imagesPrefix = "/static/images"
)

// UploadImageInput is an uploaded file as received from a multipart form.
type UploadImageInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageStore persists uploaded images and returns their public path.
type ImageStore interface {
	Save(ctx context.Context, in UploadImageInput) (string, error)
}

// ImageService validates, downsizes and stores uploaded pictures on local disk.
type ImageService struct {
	uploadDir      string
	maxUploadBytes int64
	maxDimension   int
}

func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{
		uploadDir:      DefaultImageUploadDir,
		maxUploadBytes: DefaultImageMaxUploadBytes,
		maxDimension:   DefaultImageMaxDimension,
	}
	if cfg != nil {
		if cfg.UploadDir != "" {
			s.uploadDir = cfg.UploadDir
		}
		if cfg.ImageMaxUploadBytes > 0 {
			s.maxUploadBytes = cfg.ImageMaxUploadBytes
		}
		if cfg.ImageMaxDimension > 0 {
			s.maxDimension = cfg.ImageMaxDimension
		}
	}
	return s
}

// Save writes a JPEG master and a WebP sibling under UploadDir/images and returns
// the JPEG's public path, e.g. /static/images/<uuid>.jpg.
func (s *ImageService) Save(ctx context.Context, in UploadImageInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadBytes>>20))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return "", models.NewValidationError("Image content type mismatch")
	}

	resized := resizeToFit(decoded, s.maxDimension, s.maxDimension)

	jpgBytes, err := encodeJPEG(resized, JPEGQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	webpBytes, err := encodeWebP(resized, WebPQuality)
	if err != nil {
		return "", models.NewInternalError(err)
	}

	name := uuid.NewString()
	jpgAbs := filepath.Join(s.uploadDir, "images", name+".jpg")
	webpAbs := filepath.Join(s.uploadDir, "images", name+".webp")

	if err := writeBytesToFile(jpgAbs, jpgBytes); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpAbs, webpBytes); err != nil {
		cleanupImageFiles([]string{jpgAbs})
		return "", models.NewInternalError(err)
	}

	middleware.Logger.DebugContext(ctx, "Image stored",
		slog.String("original", in.Filename),
		slog.String("format", format),
		slog.Int("bytes", len(jpgBytes)),
	)
	return path.Join(imagesPrefix, name+".jpg"), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if scaleH := float64(maxHeight) / float64(h); scaleH < scale {
		scale = scaleH
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupImageFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
