package record

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	apperrors "github.com/sheqdesk/signing/internal/platform/errors"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func inkedPNG(t *testing.T, strokes int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < strokes; i++ {
		img.Set(4+i%24, 8+i/24, color.Black)
	}
	return encodePNG(t, img)
}

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	if err := ValidateSignature(inkedPNG(t, 24)); err != nil {
		t.Fatalf("inked capture rejected: %v", err)
	}
}

func TestValidateSignatureRejections(t *testing.T) {
	t.Parallel()

	white := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			white.Set(x, y, color.White)
		}
	}

	tests := []struct {
		name    string
		payload []byte
		code    apperrors.Code
	}{
		{name: "empty payload", payload: nil, code: apperrors.CodeSignatureEmpty},
		{name: "oversized payload", payload: make([]byte, MaxSignatureBytes+1), code: apperrors.CodeSignatureTooLarge},
		{name: "not a png", payload: []byte("GIF89a not really"), code: apperrors.CodeSignatureUndecodable},
		{name: "transparent canvas", payload: encodePNG(t, image.NewRGBA(image.Rect(0, 0, 32, 32))), code: apperrors.CodeSignatureEmpty},
		{name: "white canvas", payload: encodePNG(t, white), code: apperrors.CodeSignatureEmpty},
		{name: "stray tap below ink floor", payload: inkedPNG(t, minInkPixels-1), code: apperrors.CodeSignatureEmpty},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSignature(tc.payload)
			if got := apperrors.CodeOf(err); got != tc.code {
				t.Errorf("code = %q, want %q (err %v)", got, tc.code, err)
			}
		})
	}
}
