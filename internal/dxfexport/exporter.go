// Package dxfexport turns parsed coordinates into DXF drawings.
package dxfexport

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shokucho.jp/portal/internal/apperr"
	"shokucho.jp/portal/internal/coords"
	"shokucho.jp/portal/internal/utils"
)

const (
	// DefaultRadius replaces a missing, unparsable or non-positive circle
	// radius. Older form versions relied on this, so it is kept and reported
	// through Job.RadiusDefaulted.
	DefaultRadius   = 1.0
	DefaultLayer    = "POINTS"
	DefaultFilename = "coordinates.dxf"
	ContentType     = "application/dxf"

	TextHeight  = 0.5
	labelOffset = 0.2
)

// ShapeKind selects the entity drawn for each point.
type ShapeKind string

const (
	ShapePoint  ShapeKind = "point" // POINT plus TEXT label
	ShapeCircle ShapeKind = "circle"
)

// layerForbidden are the characters AutoCAD rejects in layer names.
const layerForbidden = "<>/\\\":;?*|=`"

// Options are the raw form values of an export request.
type Options struct {
	LayerName string
	ShapeKind string
	Radius    string
	Filename  string
}

// Job is a validated export request.
type Job struct {
	ID              string
	Points          []coords.Point
	LayerName       string
	ShapeKind       ShapeKind
	Radius          float64
	RadiusDefaulted bool
	Filename        string
}

// NewJob validates points and options into a Job.
func NewJob(points []coords.Point, opts Options) (Job, error) {
	if len(points) == 0 {
		return Job{}, apperr.Validation("no valid coordinates were found")
	}

	kind := ShapeKind(strings.ToLower(strings.TrimSpace(opts.ShapeKind)))
	switch kind {
	case "":
		kind = ShapePoint
	case ShapePoint, ShapeCircle:
	default:
		return Job{}, apperr.Validationf("unknown shape kind %q", opts.ShapeKind)
	}

	layer := strings.TrimSpace(opts.LayerName)
	if layer == "" {
		layer = DefaultLayer
	}

	job := Job{
		ID:        uuid.NewString(),
		Points:    points,
		LayerName: layer,
		ShapeKind: kind,
		Filename:  SanitizeFilename(opts.Filename),
	}
	if kind == ShapeCircle {
		job.Radius, job.RadiusDefaulted = ParseRadius(opts.Radius)
	}
	return job, nil
}

// ParseRadius parses a circle radius, falling back to DefaultRadius when raw
// is not a positive number. The second result reports the fallback.
func ParseRadius(raw string) (float64, bool) {
	r, err := utils.ParseNumber(raw)
	if err != nil || r <= 0 {
		return DefaultRadius, true
	}
	return r, false
}

// SanitizeFilename strips directories and characters unsafe in download
// names and enforces the .dxf extension.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, name)

	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" || base == "." || base == "_" {
		return DefaultFilename
	}
	return base + ".dxf"
}

// Exporter builds drawings for jobs.
type Exporter struct {
	newDoc NewDocumentFunc
	logger zerolog.Logger
}

// NewExporter creates an Exporter. A nil newDoc uses NewDXFDocument.
func NewExporter(newDoc NewDocumentFunc, logger zerolog.Logger) *Exporter {
	if newDoc == nil {
		newDoc = NewDXFDocument
	}
	return &Exporter{newDoc: newDoc, logger: logger}
}

// Build creates a document holding one shape per point on the job's layer.
// The document is returned only when every shape was added.
func (e *Exporter) Build(job Job) (Document, error) {
	if strings.ContainsAny(job.LayerName, layerForbidden) {
		return nil, apperr.Newf(apperr.CodeExportFailure, "layer name %q contains forbidden characters", job.LayerName)
	}

	doc := e.newDoc()
	if err := doc.UseLayer(job.LayerName); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExportFailure, "failed to prepare layer")
	}

	for i, p := range job.Points {
		if err := addShape(doc, job, p); err != nil {
			e.logger.Warn().Err(err).Str("job_id", job.ID).Int("point", i).Msg("failed to add shape")
			return nil, apperr.Wrap(err, apperr.CodeExportFailure, "failed to add shape")
		}
	}

	e.logger.Debug().
		Str("job_id", job.ID).
		Str("layer", job.LayerName).
		Str("shape", string(job.ShapeKind)).
		Int("points", len(job.Points)).
		Msg("built drawing")
	return doc, nil
}

func addShape(doc Document, job Job, p coords.Point) error {
	switch job.ShapeKind {
	case ShapeCircle:
		return doc.AddCircle(p.X, p.Y, p.Z, job.Radius)
	default:
		if err := doc.AddPoint(p.X, p.Y, p.Z); err != nil {
			return err
		}
		if p.Label == "" {
			return nil
		}
		return doc.AddText(p.Label, p.X+labelOffset, p.Y+labelOffset, p.Z, TextHeight)
	}
}

// Export builds and serializes the drawing for job.
func (e *Exporter) Export(job Job) ([]byte, error) {
	doc, err := e.Build(job)
	if err != nil {
		return nil, err
	}
	data, err := doc.Bytes()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExportFailure, "failed to serialize drawing")
	}
	e.logger.Info().Str("job_id", job.ID).Str("filename", job.Filename).Int("bytes", len(data)).Msg("exported drawing")
	return data, nil
}
