// File: internal/infra/blob/optimize.go
package blob

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

// optimize re-encodes an uploaded image, downscaling when either dimension
// exceeds maxDim. PNG input stays PNG so transparency survives; everything
// else becomes JPEG.
func optimize(data []byte, maxDim int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if maxDim > 0 && (bounds.Dx() > maxDim || bounds.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	outFormat := imaging.JPEG
	contentType := "image/jpeg"
	if format == "png" {
		outFormat = imaging.PNG
		contentType = "image/png"
	}
	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, outFormat, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), contentType, nil
}
