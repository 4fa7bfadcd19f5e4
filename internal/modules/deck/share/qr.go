package share

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const (
	DefaultQRSize = 256
	maxQRSize     = 2048
)

// QRCode renders url as a square PNG QR code of size pixels.
func QRCode(url string, size int) ([]byte, error) {
	if url == "" {
		return nil, errors.New("url required")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	code, err := qr.Encode(url, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	if b := code.Bounds(); b.Dx() > size {
		size = b.Dx()
	}
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("qr scale: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("qr png: %w", err)
	}
	return buf.Bytes(), nil
}
