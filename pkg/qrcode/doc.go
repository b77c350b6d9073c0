// Package qrcode renders otpauth provisioning URIs as QR codes.
//
// It wraps github.com/skip2/go-qrcode. Generate returns PNG bytes,
// GenerateBase64Image a data URI for HTML, and GenerateTerminal a block
// character rendering for CLIs. Renderer adapts the PNG path to the
// QRRenderer interface used by the twofactor service.
//
//	img, err := qrcode.Renderer{Size: 256}.Render(uri.String())
//
// Empty content yields ErrEmptyContent; encoder failures are joined with
// ErrorFailedToGenerateQRCode.
package qrcode
