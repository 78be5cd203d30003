package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

var ErrUnsupportedSourceType = errors.New("source is not a supported image type")

type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

type Transcoder interface {
	Transcode(r io.Reader, w io.Writer) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}

// Pipeline processes a single source image: fetch, transcode, upload. All
// three stages are wired together with pipes, so the encoded payload flows
// through in chunks and backpressure from a slow upload stalls the fetch
// instead of growing a buffer.
type Pipeline struct {
	fetcher    Fetcher
	transcoder Transcoder
	store      ObjectStore

	fetchTimeout  time.Duration
	uploadTimeout time.Duration
}

func New(f Fetcher, t Transcoder, store ObjectStore, fetchTimeout, uploadTimeout time.Duration) *Pipeline {
	return &Pipeline{
		fetcher:       f,
		transcoder:    t,
		store:         store,
		fetchTimeout:  fetchTimeout,
		uploadTimeout: uploadTimeout,
	}
}

// Process runs one image through the pipeline and returns the durable
// location of the uploaded rendition. Failures never escalate past this
// boundary in a way that should abort a batch: the error carries diagnostic
// context, is reported, and the caller treats it as "no output for this
// image".
func (p *Pipeline) Process(ctx context.Context, url, productName string, idx int) (string, error) {
	location, err := p.process(ctx, url, productName, idx)
	if err != nil {
		log.Printf("[pipeline] failed to process image %q for product %q: %v", url, productName, err)
		sentry.CaptureException(fmt.Errorf("process image %q for product %q: %w", url, productName, err))
		return "", err
	}
	return location, nil
}

func (p *Pipeline) process(ctx context.Context, url, productName string, idx int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.deadline())
	defer cancel()

	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close()

	// Sniff the real content type from the first bytes, then stitch the
	// consumed header back onto the stream.
	mime, recycled, err := detectMime(body)
	if err != nil {
		return "", fmt.Errorf("detect content type: %w", err)
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedSourceType, mime.String())
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(p.transcoder.Transcode(recycled, pw))
	}()

	key := destinationKey(productName, idx)
	location, err := p.store.Put(ctx, key, pr, "image/jpeg")
	if err != nil {
		// Unblock the transcoder goroutine if the upload died first.
		pr.CloseWithError(err)
		return "", err
	}

	return location, nil
}

// deadline bounds the whole fetch+transcode+upload of one image. Fetch and
// upload run overlapped through the pipe, so their budgets add up rather
// than nest.
func (p *Pipeline) deadline() time.Duration {
	d := p.fetchTimeout + p.uploadTimeout
	if d <= 0 {
		d = 2 * time.Minute
	}
	return d
}

func detectMime(r io.Reader) (*mimetype.MIME, io.Reader, error) {
	header := make([]byte, 3072)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, nil, err
	}
	header = header[:n]

	mime := mimetype.Detect(header)
	return mime, io.MultiReader(bytes.NewReader(header), r), nil
}

// destinationKey derives a collision-free object key for a processed image.
// The uuid token keeps repeated runs of the same product from overwriting
// each other's output.
func destinationKey(productName string, idx int) string {
	return fmt.Sprintf("output-image-%s-%d-%s.jpg", slug(productName), idx, uuid.NewString())
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "product"
	}
	return b.String()
}
