package services

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCheckImage(t *testing.T) {
	img, err := CheckImage(pngBytes(t), "proof.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIME)

	// a PDF renamed to .png is still rejected
	_, err = CheckImage([]byte("%PDF-1.4\n1 0 obj\n"), "proof.png")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "JPG and PNG")

	oversized := append(pngBytes(t), make([]byte, MaxImageBytes)...)
	_, err = CheckImage(oversized, "big.png")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "5MB")

	_, err = CheckImage(nil, "empty.png")
	assert.Error(t, err)
}
