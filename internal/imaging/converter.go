// Package imaging converts uploaded images to JPEG, best effort per file.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder

	"shokucho.jp/portal/internal/apperr"
)

const (
	DefaultQuality = 90

	// maxPixels bounds the decoded size of a single image.
	maxPixels = 100_000_000

	ContentTypeJPEG = "image/jpeg"
	ContentTypeZIP  = "application/zip"
	ArchiveName     = "converted_images.zip"
)

// Source is one uploaded file.
type Source struct {
	Name string
	Data []byte
}

// Output is one converted JPEG.
type Output struct {
	Name string
	Data []byte
}

// Skipped is an input that could not be converted.
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Batch is the result of converting a set of files.
type Batch struct {
	Outputs []Output
	Skipped []Skipped
}

// Converted returns the number of files that converted.
func (b *Batch) Converted() int {
	return len(b.Outputs)
}

// Archive returns a ZIP holding every output.
func (b *Batch) Archive() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, out := range b.Outputs {
		// JPEG data is already compressed.
		w, err := zw.CreateHeader(&zip.FileHeader{Name: out.Name, Method: zip.Store})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", out.Name, err)
		}
		if _, err := w.Write(out.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", out.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

// Converter re-encodes images as JPEG.
type Converter struct {
	quality int
	logger  zerolog.Logger
}

// NewConverter creates a Converter. Quality outside 1..100 uses DefaultQuality.
func NewConverter(quality int, logger zerolog.Logger) *Converter {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Converter{quality: quality, logger: logger}
}

// ConvertImages converts files one after another. A file that fails is
// logged and listed in Batch.Skipped; the call only fails when no file
// converted.
func (c *Converter) ConvertImages(files []Source) (*Batch, error) {
	batch := &Batch{}
	names := make(map[string]bool, len(files))

	for _, f := range files {
		data, err := c.convert(f.Data)
		if err != nil {
			c.logger.Warn().Err(err).Str("file", f.Name).Msg("skipping image")
			batch.Skipped = append(batch.Skipped, Skipped{Name: f.Name, Reason: err.Error()})
			continue
		}
		batch.Outputs = append(batch.Outputs, Output{Name: outputName(f.Name, names), Data: data})
	}

	if batch.Converted() == 0 {
		return batch, apperr.New(apperr.CodeNoValidInput, "no image could be converted").WithDetails(batch.Skipped)
	}

	c.logger.Info().Int("converted", batch.Converted()).Int("skipped", len(batch.Skipped)).Msg("converted images")
	return batch, nil
}

func (c *Converter) convert(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, toRGB(src), &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	if format == "jpeg" {
		if exif := extractEXIF(data); exif != nil {
			withExif, err := insertSegment(out.Bytes(), exif)
			if err == nil {
				return withExif, nil
			}
			c.logger.Warn().Err(err).Msg("dropping EXIF from converted image")
		}
	}
	return out.Bytes(), nil
}

// toRGB flattens src onto an opaque white canvas.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// outputName derives "<base>.jpg", adding a numeric suffix on collisions.
func outputName(name string, seen map[string]bool) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}

	candidate := base + ".jpg"
	for n := 1; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d.jpg", base, n)
	}
	seen[candidate] = true
	return candidate
}
