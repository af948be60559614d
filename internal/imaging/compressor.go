package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"math"
	"strings"
	"time"

	// decoders accepted as input
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	pkgerrors "github.com/angelmondragon/inventory-tracker/pkg/errors"
	"github.com/angelmondragon/inventory-tracker/pkg/logger"
	"github.com/angelmondragon/inventory-tracker/pkg/metrics"
	"github.com/angelmondragon/inventory-tracker/pkg/validate"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

const outputMimeType = "image/jpeg"

// Config wires a Compressor.
type Config struct {
	Defaults          Options
	ThumbnailDefaults Options
	Logger            *logger.Logger
	Metrics           *metrics.OperationMetrics
}

// Compressor downscales photos and re-encodes them as JPEG.
type Compressor struct {
	defaults      Options
	thumbDefaults Options
	log           *logger.Logger
	metrics       *metrics.OperationMetrics
}

func New(cfg Config) *Compressor {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	return &Compressor{
		defaults:      cfg.Defaults.withDefaults(DefaultOptions),
		thumbDefaults: cfg.ThumbnailDefaults.withDefaults(DefaultThumbnailOptions),
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
	}
}

// Compress reads f and returns it scaled to fit opts. Once started the call
// runs to completion; ctx carries log fields only.
func (c *Compressor) Compress(ctx context.Context, f File, opts Options) (*Blob, error) {
	start := time.Now()
	blob, err := c.compressFile(ctx, f, opts)
	c.track(ctx, "compress", start, err)
	return blob, err
}

// CompressWithThumbnail reads f once and produces the main image and its thumbnail.
func (c *Compressor) CompressWithThumbnail(ctx context.Context, f File, main, thumb Options) (*Blob, *Blob, error) {
	start := time.Now()
	mainBlob, thumbBlob, err := c.compressPair(ctx, f, main, thumb)
	c.track(ctx, "compress_with_thumbnail", start, err)
	return mainBlob, thumbBlob, err
}

func (c *Compressor) compressFile(ctx context.Context, f File, opts Options) (*Blob, error) {
	resolved, err := c.resolve(opts, c.defaults)
	if err != nil {
		return nil, err
	}
	data, err := readAll(f)
	if err != nil {
		return nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return c.encode(c.log.WithField(ctx, "file", f.Name()), img, resolved)
}

func (c *Compressor) compressPair(ctx context.Context, f File, main, thumb Options) (*Blob, *Blob, error) {
	mainOpts, err := c.resolve(main, c.defaults)
	if err != nil {
		return nil, nil, err
	}
	thumbOpts, err := c.resolve(thumb, c.thumbDefaults)
	if err != nil {
		return nil, nil, err
	}
	data, err := readAll(f)
	if err != nil {
		return nil, nil, err
	}
	img, err := decode(data)
	if err != nil {
		return nil, nil, err
	}
	ctx = c.log.WithField(ctx, "file", f.Name())
	mainBlob, err := c.encode(ctx, img, mainOpts)
	if err != nil {
		return nil, nil, err
	}
	thumbBlob, err := c.encode(ctx, img, thumbOpts)
	if err != nil {
		return nil, nil, err
	}
	return mainBlob, thumbBlob, nil
}

// resolve fills zero fields from def and validates the result, so bad
// configured defaults fail the same way as bad caller options.
func (c *Compressor) resolve(opts Options, def Options) (Options, error) {
	resolved := opts.withDefaults(def)
	if err := validate.Struct(&resolved); err != nil {
		return Options{}, err
	}
	return resolved, nil
}

func readAll(f File) ([]byte, error) {
	if f == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRead, "no file given")
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRead, err, fmt.Sprintf("read %s", f.Name()))
	}
	return data, nil
}

func decode(data []byte) (image.Image, error) {
	kind := mimetype.Detect(data)
	if !strings.HasPrefix(kind.String(), "image/") {
		return nil, pkgerrors.New(pkgerrors.CodeDecode, "input is not an image").
			WithDetails(map[string]any{"detected": kind.String()})
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDecode, err, "decode "+kind.String()).
			WithDetails(map[string]any{"detected": kind.String()})
	}
	return img, nil
}

func (c *Compressor) encode(ctx context.Context, src image.Image, opts Options) (*Blob, error) {
	b := src.Bounds()
	width, height := FitDimensions(b.Dx(), b.Dy(), opts.MaxWidth, opts.MaxHeight)
	c.log.Debug(c.log.WithFields(ctx, map[string]any{
		"original_width":  b.Dx(),
		"original_height": b.Dy(),
		"width":           width,
		"height":          height,
	}), "computed dimensions")
	if width < 1 || height < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeEncode, fmt.Sprintf("scaled size %dx%d has no pixels", width, height))
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality(opts.Quality)}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeEncode, err, "encode jpeg")
	}
	if buf.Len() == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEncode, "encoder produced no output")
	}

	blob := &Blob{Data: buf.Bytes(), MimeType: outputMimeType, Width: width, Height: height}
	c.log.Info(c.log.WithField(ctx, "bytes", blob.Size()), "image compressed")
	return blob, nil
}

// FitDimensions scales w x h to the bounds. Landscape and square inputs are
// checked against maxWidth only, portrait inputs against maxHeight only.
// Fractional pixels are truncated.
func FitDimensions(w, h, maxWidth, maxHeight int) (int, int) {
	if w >= h {
		if w > maxWidth {
			return maxWidth, int(float64(h) * float64(maxWidth) / float64(w))
		}
		return w, h
	}
	if h > maxHeight {
		return int(float64(w) * float64(maxHeight) / float64(h)), maxHeight
	}
	return w, h
}

func jpegQuality(q float64) int {
	return int(math.Round(q * 100))
}

func (c *Compressor) track(ctx context.Context, op string, start time.Time, err error) {
	if err == nil {
		c.metrics.Track(op, start, "", false)
		return
	}
	code := pkgerrors.CodeEncode
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	c.metrics.Track(op, start, string(code), true)
	c.log.Error(c.log.WithField(ctx, "code", string(code)), "image compression failed", err)
}
