package record

import (
	"bytes"
	"image"
	"image/png"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

// MaxSignatureBytes is the boundary ceiling for one serialized signature
// image. Enforced before any state mutation.
const MaxSignatureBytes = 1 << 20

// minInkPixels is the minimum number of drawn pixels for a capture to count
// as a signature rather than a stray tap.
const minInkPixels = 16

// ValidateSignature checks the signature capture contract: the payload must
// be a decodable PNG raster that is not blank. The payload is otherwise
// opaque and stored unchanged.
func ValidateSignature(payload []byte) error {
	if len(payload) == 0 {
		return apperrors.New(apperrors.CodeSignatureEmpty, "signature image is empty")
	}
	if len(payload) > MaxSignatureBytes {
		return apperrors.New(apperrors.CodeSignatureTooLarge, "signature image exceeds size limit")
	}
	img, err := png.Decode(bytes.NewReader(payload))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeSignatureUndecodable, "signature image is not a valid PNG", err)
	}
	if inkPixels(img) < minInkPixels {
		return apperrors.New(apperrors.CodeSignatureEmpty, "signature capture is blank")
	}
	return nil
}

// inkPixels counts pixels that are neither transparent nor near-white.
// Free-hand captures export dark strokes over a transparent or white canvas.
func inkPixels(img image.Image) int {
	const whiteFloor = 0xf000

	bounds := img.Bounds()
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			if r >= whiteFloor && g >= whiteFloor && b >= whiteFloor {
				continue
			}
			count++
			if count >= minInkPixels {
				return count
			}
		}
	}
	return count
}
