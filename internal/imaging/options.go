package imaging

import (
	"io"

	"github.com/angelmondragon/inventory-tracker/pkg/config"
)

// Options bound the output of a compress call. Zero fields take the
// compressor's defaults.
type Options struct {
	MaxWidth  int     `json:"maxWidth,omitempty" validate:"gte=0"`
	MaxHeight int     `json:"maxHeight,omitempty" validate:"gte=0"`
	Quality   float64 `json:"quality,omitempty" validate:"gte=0,lte=1"`
}

// DefaultOptions are used for main images when no config is supplied.
var DefaultOptions = Options{MaxWidth: 800, MaxHeight: 800, Quality: 0.8}

// DefaultThumbnailOptions are used for thumbnails when no config is supplied.
var DefaultThumbnailOptions = Options{MaxWidth: 200, MaxHeight: 200, Quality: 0.7}

// OptionsFromConfig converts the image section of the app config.
func OptionsFromConfig(cfg config.ImageConfig) Options {
	return Options{MaxWidth: cfg.MaxWidth, MaxHeight: cfg.MaxHeight, Quality: cfg.Quality}
}

// ThumbnailOptionsFromConfig converts the thumbnail section of the app config.
func ThumbnailOptionsFromConfig(cfg config.ThumbnailConfig) Options {
	return Options{MaxWidth: cfg.MaxWidth, MaxHeight: cfg.MaxHeight, Quality: cfg.Quality}
}

func (o Options) withDefaults(def Options) Options {
	if o.MaxWidth == 0 {
		o.MaxWidth = def.MaxWidth
	}
	if o.MaxHeight == 0 {
		o.MaxHeight = def.MaxHeight
	}
	if o.Quality == 0 {
		o.Quality = def.Quality
	}
	return o
}

// File is a readable image source with a display name.
type File interface {
	io.Reader
	Name() string
}

type namedReader struct {
	io.Reader
	name string
}

func (n namedReader) Name() string { return n.name }

// NewFile labels r with name so it can be passed to Compress.
func NewFile(name string, r io.Reader) File {
	return namedReader{Reader: r, name: name}
}

// Blob is an encoded image.
type Blob struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// Size is the encoded length in bytes.
func (b *Blob) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}
