package rimage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	// register the extra decoders accepted by PixelFormatEncoded.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// PixelFormat describes how the bytes of a captured frame are laid out.
type PixelFormat string

// The pixel formats camera sources may deliver.
const (
	PixelFormatRGBA    = PixelFormat("rgba")
	PixelFormatGray    = PixelFormat("gray")
	PixelFormatYUYV    = PixelFormat("yuyv")
	PixelFormatJPEG    = PixelFormat("jpeg")
	PixelFormatEncoded = PixelFormat("encoded")
)

// ParsePixelFormat returns the PixelFormat named by s.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch f := PixelFormat(strings.ToLower(s)); f {
	case PixelFormatRGBA, PixelFormatGray, PixelFormatYUYV, PixelFormatJPEG, PixelFormatEncoded:
		return f, nil
	case "mjpeg":
		return PixelFormatJPEG, nil
	default:
		return "", errors.Errorf("unknown pixel format %q", s)
	}
}

// FrameConversionError is returned when the bytes of a single frame cannot be turned into an
// image. It only ever concerns that one frame.
type FrameConversionError struct {
	Format PixelFormat
	Err    error
}

func (e *FrameConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s frame: %v", e.Format, e.Err)
}

func (e *FrameConversionError) Unwrap() error {
	return e.Err
}

func newFrameConversionError(format PixelFormat, err error) error {
	return &FrameConversionError{Format: format, Err: err}
}

// DecodeFrame turns raw frame bytes into an image.Image. Raw formats (rgba, gray, yuyv) require
// the frame dimensions; the returned image may share memory with data, so data must not be
// modified afterwards. Any failure is a *FrameConversionError.
func DecodeFrame(data []byte, format PixelFormat, width, height int) (image.Image, error) {
	if len(data) == 0 {
		return nil, newFrameConversionError(format, errors.New("empty frame"))
	}
	switch format {
	case PixelFormatRGBA:
		if err := checkRawSize(data, width, height, 4); err != nil {
			return nil, newFrameConversionError(format, err)
		}
		return &image.RGBA{Pix: data, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}, nil
	case PixelFormatGray:
		if err := checkRawSize(data, width, height, 1); err != nil {
			return nil, newFrameConversionError(format, err)
		}
		return &image.Gray{Pix: data, Stride: width, Rect: image.Rect(0, 0, width, height)}, nil
	case PixelFormatYUYV:
		if width%2 != 0 {
			return nil, newFrameConversionError(format, errors.Errorf("yuyv width must be even, got %d", width))
		}
		if err := checkRawSize(data, width, height, 2); err != nil {
			return nil, newFrameConversionError(format, err)
		}
		return decodeYUYV(data, width, height), nil
	case PixelFormatJPEG:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, newFrameConversionError(format, err)
		}
		if err := checkDecodedSize(format, img, width, height); err != nil {
			return nil, err
		}
		return img, nil
	case PixelFormatEncoded:
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, newFrameConversionError(format, err)
		}
		if err := checkDecodedSize(format, img, width, height); err != nil {
			return nil, err
		}
		return img, nil
	default:
		return nil, newFrameConversionError(format, errors.New("unsupported pixel format"))
	}
}

func checkRawSize(data []byte, width, height, bytesPerPixel int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid dimensions %dx%d", width, height)
	}
	if expected := width * height * bytesPerPixel; len(data) != expected {
		return errors.Errorf("expected %d bytes for %dx%d, got %d", expected, width, height, len(data))
	}
	return nil
}

// checkDecodedSize only applies when the source announced dimensions.
func checkDecodedSize(format PixelFormat, img image.Image, width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return newFrameConversionError(format,
			errors.Errorf("decoded %dx%d image, frame announced %dx%d", b.Dx(), b.Dy(), width, height))
	}
	return nil
}

func decodeYUYV(frame []byte, width, height int) *image.YCbCr {
	yuyv := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for i := range yuyv.Cb {
		ii := i * 4
		yuyv.Y[i*2] = frame[ii]
		yuyv.Y[i*2+1] = frame[ii+2]
		yuyv.Cb[i] = frame[ii+1]
		yuyv.Cr[i] = frame[ii+3]
	}
	return yuyv
}

// ToRGBA copies img into a new *image.RGBA with a zero origin.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// FlipHorizontal returns a mirrored copy of img.
func FlipHorizontal(img image.Image) *image.RGBA {
	src := ToRGBA(img)
	width, height := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewRGBA(src.Rect)
	for y := 0; y < height; y++ {
		row := y * src.Stride
		for x := 0; x < width; x++ {
			copy(out.Pix[row+(width-1-x)*4:row+(width-x)*4], src.Pix[row+x*4:row+x*4+4])
		}
	}
	return out
}
