package pos

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"

	"github.com/vitwit/algopay/types"
)

// DefaultQRSize is the rendered QR edge length in pixels.
const DefaultQRSize = 256

// QRCode renders the request's payment URI as a PNG.
func QRCode(r *Request, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	uri, err := PaymentURI(r)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, types.NewPayError(types.ErrConfigurationError, "qr encode failed: "+err.Error(), nil)
	}
	return png, nil
}

// QRCodeDataURL renders the QR PNG as a data URL for direct embedding in an
// img tag.
func QRCodeDataURL(r *Request, size int) (string, error) {
	png, err := QRCode(r, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
