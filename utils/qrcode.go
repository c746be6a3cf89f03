package utils

import (
	"fmt"
	"net/url"
	"strconv"

	qrcode "github.com/skip2/go-qrcode"
)

// UPIPaymentURI builds a upi://pay intent that any UPI app can scan.
func UPIPaymentURI(payeeVPA, payeeName string, amount float64, note string) string {
	q := url.Values{}
	q.Set("pa", payeeVPA)
	q.Set("pn", payeeName)
	q.Set("am", strconv.FormatFloat(amount, 'f', 2, 64))
	q.Set("cu", "INR")
	if note != "" {
		q.Set("tn", note)
	}
	return "upi://pay?" + q.Encode()
}

// QRCodePNG encodes content as a PNG QR code of the given pixel size.
func QRCodePNG(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("generate QR code: %w", err)
	}
	return png, nil
}
