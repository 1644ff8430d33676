package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const (
	// JPEGDataURLPrefix is the only frame encoding clients may send.
	JPEGDataURLPrefix = "data:image/jpeg;base64,"
	// PNGDataURLPrefix prefixes every image the server sends back.
	PNGDataURLPrefix = "data:image/png;base64,"
)

// outbound payloads are percent-encoded the way the browser client expects
var dataURLEscaper = strings.NewReplacer("+", "%2B", "=", "%3D")

// DecodeJPEGDataURL validates the prefix and decodes the frame.
func DecodeJPEGDataURL(dataURL string) (image.Image, error) {
	payload, ok := strings.CutPrefix(dataURL, JPEGDataURLPrefix)
	if !ok {
		return nil, domain.ErrInvalidFrame
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.ErrInvalidFrame.WithError(fmt.Errorf("base64: %w", err))
	}

	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domain.ErrInvalidFrame.WithError(fmt.Errorf("jpeg: %w", err))
	}

	return img, nil
}

// EncodePNGDataURL renders img as a percent-encoded PNG data URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return PNGBytesDataURL(buf.Bytes()), nil
}

// PNGBytesDataURL wraps already encoded PNG bytes.
func PNGBytesDataURL(pngBytes []byte) string {
	encoded := base64.StdEncoding.EncodeToString(pngBytes)
	return PNGDataURLPrefix + dataURLEscaper.Replace(encoded)
}

// JPEGDataURL is the inverse of DecodeJPEGDataURL; tests and tools use it
// to build frames.
func JPEGDataURL(img image.Image) (string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return "", err
	}
	return JPEGDataURLPrefix + base64.StdEncoding.EncodeToString(data), nil
}
