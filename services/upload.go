package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageBytes caps payment screenshots and profile photos.
const MaxImageBytes = 5 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png"}

// Image is an accepted upload held in memory.
type Image struct {
	Data     []byte
	MIME     string
	Filename string
}

func (i *Image) Reader() io.Reader { return bytes.NewReader(i.Data) }

// ReadImage loads an uploaded file and checks it is a JPG or PNG of at most 5MB.
// The type is sniffed from the content; the client's Content-Type is ignored.
func ReadImage(fh *multipart.FileHeader) (*Image, error) {
	if fh.Size > MaxImageBytes {
		return nil, invalid("file", "file is larger than %dMB", MaxImageBytes>>20)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return CheckImage(data, fh.Filename)
}

// CheckImage validates raw bytes as a JPG/PNG image within the size limit.
func CheckImage(data []byte, filename string) (*Image, error) {
	if len(data) == 0 {
		return nil, invalid("file", "file is empty")
	}
	if len(data) > MaxImageBytes {
		return nil, invalid("file", "file is larger than %dMB", MaxImageBytes>>20)
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, invalid("file", "only JPG and PNG images are accepted")
	}
	return &Image{Data: data, MIME: mt.String(), Filename: filename}, nil
}
