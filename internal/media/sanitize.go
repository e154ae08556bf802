package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/sunshineplan/imgconv"
)

const jpegQuality = 85

// SanitizeImage decodes an arbitrary image, flattens it onto an opaque
// white RGB canvas and re-encodes it as JPEG. Metadata does not survive.
func SanitizeImage(data []byte) ([]byte, error) {
	src, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := imgconv.Write(&buf, flat, &imgconv.FormatOption{
		Format:       imgconv.JPEG,
		EncodeOption: []imgconv.EncodeOption{imgconv.Quality(jpegQuality)},
	}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
