package share

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of generated QR codes.
const DefaultQRSize = 256

// QRCode encodes link as a PNG QR code, so a shared post can be opened by
// scanning it from another device.
func QRCode(link string, size int) ([]byte, error) {
	if link == "" {
		return nil, fmt.Errorf("qr code: empty link")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr code: %w", err)
	}
	return png, nil
}
