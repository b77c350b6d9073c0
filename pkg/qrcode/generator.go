package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when content string is empty or only whitespace
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrorFailedToGenerateQRCode is returned when the QR code generation fails.
	ErrorFailedToGenerateQRCode = errors.New("failed to generate QR code")
)

// DefaultSize is the edge length in pixels used when no size is specified.
const DefaultSize = 256

const dataURIPrefix = "data:image/png;base64,"

// Generate encodes content as a square PNG of the given size. Provisioning URIs
// are short enough that medium error correction keeps the code easy to scan.
func Generate(content string, size int) ([]byte, error) {
	return encode(content, size, skipqrcode.Medium)
}

// GenerateBase64Image returns the PNG from Generate as a data URI suitable for
// an <img src> attribute.
func GenerateBase64Image(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// GenerateTerminal renders content as block characters for display in a terminal.
func GenerateTerminal(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	qr, err := skipqrcode.New(content, skipqrcode.Medium)
	if err != nil {
		return "", errors.Join(ErrorFailedToGenerateQRCode, err)
	}
	return qr.ToSmallString(false), nil
}

// Renderer turns provisioning URIs into PNG images. The zero value renders
// DefaultSize images with medium error correction.
type Renderer struct {
	Size int
	// High switches to the highest error correction level, useful when the
	// image is printed or shown on low quality displays.
	High bool
}

// Render encodes uri as a PNG.
func (r Renderer) Render(uri string) ([]byte, error) {
	level := skipqrcode.Medium
	if r.High {
		level = skipqrcode.Highest
	}
	return encode(uri, r.Size, level)
}

func encode(content string, size int, level skipqrcode.RecoveryLevel) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, level, size)
	if err != nil {
		return nil, errors.Join(ErrorFailedToGenerateQRCode, err)
	}
	return png, nil
}
