package transcoder

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"

	_ "image/gif"
	_ "image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

func init() {
	// image.Decode handles jpeg/png/gif out of the box; webp needs registering.
	image.RegisterFormat("webp", "RIFF????WEBP", webp.Decode, webp.DecodeConfig)
}

// Transcoder re-encodes images to reduced-quality JPEG, optionally capping
// the longest side first.
type Transcoder struct {
	Quality      int // JPEG quality, 1-100
	MaxDimension int // longest side cap in pixels, 0 disables
}

func New(quality, maxDimension int) *Transcoder {
	if quality <= 0 || quality > 100 {
		quality = 50
	}
	return &Transcoder{Quality: quality, MaxDimension: maxDimension}
}

// Transcode reads one encoded image from r and writes its JPEG rendition to
// w. The reader-to-writer contract lets callers pipe the output onward
// without collecting it: only the decoded frame lives in memory, never a
// second copy of the encoded payload.
func (t *Transcoder) Transcode(r io.Reader, w io.Writer) error {
	img, _, err := image.Decode(r)
	if err != nil {
		return fmt.Errorf("error decoding image: %w", err)
	}

	img = t.cap(img)

	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: t.Quality}); err != nil {
		return fmt.Errorf("error encoding to jpeg: %w", err)
	}
	return nil
}

// cap shrinks img so its longest side fits MaxDimension, preserving aspect
// ratio. Images already inside the cap are returned untouched.
func (t *Transcoder) cap(img image.Image) image.Image {
	if t.MaxDimension <= 0 {
		return img
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	if w == 0 || h == 0 {
		return img
	}

	ratio := w / float64(t.MaxDimension)
	if hRatio := h / float64(t.MaxDimension); hRatio > ratio {
		ratio = hRatio
	}

	// Nothing to do - return original image
	if ratio <= 1 {
		return img
	}

	return imaging.Resize(img, int(w/ratio), int(h/ratio), imaging.Lanczos)
}
