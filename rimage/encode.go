package rimage

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"

	"github.com/pkg/errors"
)

// DefaultJPEGQuality is used when encoding preview frames.
const DefaultJPEGQuality = 75

// EncodeJPEG encodes img as a JPEG at the given quality (DefaultJPEGQuality when <= 0).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("cannot encode nil image")
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "jpeg encode")
	}
	return buf.Bytes(), nil
}

// ReadImageFromFile decodes the image stored at path in any registered format.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode %s", path)
	}
	return img, nil
}
