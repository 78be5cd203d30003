package transcoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/franela/goblin"
)

func encodePNG(t *testing.T, width, height int) *bytes.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return &buf
}

func TestTranscoder(t *testing.T) {
	g := goblin.Goblin(t)

	g.Describe("Transcode", func() {
		g.It("re-encodes a png as jpeg", func() {
			src := encodePNG(t, 64, 48)
			var out bytes.Buffer

			err := New(50, 0).Transcode(src, &out)
			g.Assert(err).IsNil()

			img, format, err := image.Decode(bytes.NewReader(out.Bytes()))
			g.Assert(err).IsNil()
			g.Assert(format).Equal("jpeg")
			g.Assert(img.Bounds().Dx()).Equal(64)
			g.Assert(img.Bounds().Dy()).Equal(48)
		})

		g.It("accepts jpeg input", func() {
			img := image.NewRGBA(image.Rect(0, 0, 10, 10))
			var src, out bytes.Buffer
			g.Assert(jpeg.Encode(&src, img, nil)).IsNil()

			g.Assert(New(50, 0).Transcode(&src, &out)).IsNil()
			g.Assert(out.Len() > 0).IsTrue()
		})

		g.It("caps the longest side while preserving aspect ratio", func() {
			src := encodePNG(t, 400, 100)
			var out bytes.Buffer

			g.Assert(New(50, 200).Transcode(src, &out)).IsNil()

			img, _, err := image.Decode(bytes.NewReader(out.Bytes()))
			g.Assert(err).IsNil()
			g.Assert(img.Bounds().Dx()).Equal(200)
			g.Assert(img.Bounds().Dy()).Equal(50)
		})

		g.It("leaves images inside the cap untouched", func() {
			src := encodePNG(t, 100, 80)
			var out bytes.Buffer

			g.Assert(New(50, 2048).Transcode(src, &out)).IsNil()

			img, _, err := image.Decode(bytes.NewReader(out.Bytes()))
			g.Assert(err).IsNil()
			g.Assert(img.Bounds().Dx()).Equal(100)
			g.Assert(img.Bounds().Dy()).Equal(80)
		})

		g.It("fails on data that is not an image", func() {
			var out bytes.Buffer
			err := New(50, 0).Transcode(strings.NewReader("definitely not pixels"), &out)
			g.Assert(err == nil).IsFalse()
		})
	})

	g.Describe("New", func() {
		g.It("falls back to a sane default for out-of-range quality", func() {
			g.Assert(New(0, 0).Quality).Equal(50)
			g.Assert(New(250, 0).Quality).Equal(50)
			g.Assert(New(75, 0).Quality).Equal(75)
		})
	})
}
