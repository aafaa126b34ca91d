package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// AllowedExtensions - допустимые расширения загрузок.
// Decode также читает bmp, tiff и webp, присланные под этими именами
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif"}

// AllowedFile проверяет, что расширение filename входит в AllowedExtensions
func AllowedFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Sniff возвращает MIME-тип data, если это изображение
func Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", models.ErrUnsupportedImage)
	}
	kind, err := filetype.Image(data)
	if err != nil || kind == filetype.Unknown {
		return "", fmt.Errorf("%w: content is not an image", models.ErrUnsupportedImage)
	}
	return kind.MIME.Value, nil
}

// Decode определяет формат и декодирует байты изображения. Ошибки оборачивают models.ErrExtraction
func Decode(data []byte) (image.Image, error) {
	mime, err := Sniff(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrExtraction, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", models.ErrExtraction, mime, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty %s image", models.ErrExtraction, format)
	}

	return img, nil
}
