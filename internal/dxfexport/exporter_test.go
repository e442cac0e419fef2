package dxfexport

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shokucho.jp/portal/internal/apperr"
	"shokucho.jp/portal/internal/coords"
)

// recordingDoc captures calls and can fail on the n-th shape.
type recordingDoc struct {
	layers  map[string]bool
	current string
	calls   []string
	failAt  int
	shapes  int
}

func newRecordingDoc() *recordingDoc {
	return &recordingDoc{layers: map[string]bool{"0": true}, failAt: -1}
}

func (d *recordingDoc) UseLayer(name string) error {
	if !d.layers[name] {
		d.layers[name] = true
		d.calls = append(d.calls, "layer+"+name)
	}
	d.current = name
	return nil
}

func (d *recordingDoc) shape(call string) error {
	if d.current == "" {
		return errors.New("no current layer")
	}
	if d.shapes == d.failAt {
		return errors.New("entity rejected")
	}
	d.shapes++
	d.calls = append(d.calls, d.current+":"+call)
	return nil
}

func (d *recordingDoc) AddPoint(x, y, z float64) error {
	return d.shape(fmt.Sprintf("point(%g,%g,%g)", x, y, z))
}

func (d *recordingDoc) AddText(text string, x, y, z, height float64) error {
	return d.shape(fmt.Sprintf("text(%s,%g,%g,%g,%g)", text, x, y, z, height))
}

func (d *recordingDoc) AddCircle(x, y, z, r float64) error {
	return d.shape(fmt.Sprintf("circle(%g,%g,%g,%g)", x, y, z, r))
}

func (d *recordingDoc) Bytes() ([]byte, error) {
	return []byte(strings.Join(d.calls, "\n")), nil
}

func newTestExporter(doc *recordingDoc) *Exporter {
	return NewExporter(func() Document { return doc }, zerolog.Nop())
}

func samplePoints() []coords.Point {
	return []coords.Point{
		{X: 1, Y: 2},
		{Label: "BM1", X: 10, Y: 20},
	}
}

func TestNewJob(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		job, err := NewJob(samplePoints(), Options{})
		require.NoError(t, err)
		assert.Equal(t, DefaultLayer, job.LayerName)
		assert.Equal(t, ShapePoint, job.ShapeKind)
		assert.Equal(t, DefaultFilename, job.Filename)
		assert.NotEmpty(t, job.ID)
		assert.False(t, job.RadiusDefaulted)
	})

	t.Run("circle radius", func(t *testing.T) {
		job, err := NewJob(samplePoints(), Options{ShapeKind: "Circle", Radius: "2.5", LayerName: " 杭 "})
		require.NoError(t, err)
		assert.Equal(t, ShapeCircle, job.ShapeKind)
		assert.Equal(t, 2.5, job.Radius)
		assert.False(t, job.RadiusDefaulted)
		assert.Equal(t, "杭", job.LayerName)
	})

	t.Run("empty points", func(t *testing.T) {
		_, err := NewJob(nil, Options{})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := NewJob(samplePoints(), Options{ShapeKind: "polyline"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

// The radius fallback is a compatibility behaviour: invalid input does not
// fail the export, it silently becomes DefaultRadius and is flagged.
func TestParseRadius_FallsBackToDefault(t *testing.T) {
	tests := []struct {
		raw           string
		want          float64
		wantDefaulted bool
	}{
		{"3", 3, false},
		{"０．５", 0.5, false},
		{"", DefaultRadius, true},
		{"abc", DefaultRadius, true},
		{"0", DefaultRadius, true},
		{"-2", DefaultRadius, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, defaulted := ParseRadius(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantDefaulted, defaulted)
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                 DefaultFilename,
		"site":             "site.dxf",
		"site.DXF":         "site.dxf",
		"../../etc/passwd": "passwd.dxf",
		`C:\tmp\plan.dxf`:  "plan.dxf",
		"図面:1":             "図面_1.dxf",
		"  測量 .txt ":       "測量 .dxf",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, SanitizeFilename(in))
		})
	}
}

func TestBuild_PointsWithLabels(t *testing.T) {
	doc := newRecordingDoc()
	e := newTestExporter(doc)

	job, err := NewJob(samplePoints(), Options{LayerName: "SURVEY"})
	require.NoError(t, err)

	_, err = e.Build(job)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"layer+SURVEY",
		"SURVEY:point(1,2,0)",
		"SURVEY:point(10,20,0)",
		"SURVEY:text(BM1,10.2,20.2,0,0.5)",
	}, doc.calls)
}

func TestBuild_Circles(t *testing.T) {
	doc := newRecordingDoc()
	e := newTestExporter(doc)

	job, err := NewJob(samplePoints(), Options{ShapeKind: "circle", Radius: "-1"})
	require.NoError(t, err)
	require.True(t, job.RadiusDefaulted)

	_, err = e.Build(job)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"layer+POINTS",
		"POINTS:circle(1,2,0,1)",
		"POINTS:circle(10,20,0,1)",
	}, doc.calls)
}

func TestBuild_ExistingLayerIsReused(t *testing.T) {
	doc := newRecordingDoc()
	e := newTestExporter(doc)

	job, err := NewJob(samplePoints()[:1], Options{LayerName: "0"})
	require.NoError(t, err)

	_, err = e.Build(job)
	require.NoError(t, err)
	assert.Equal(t, []string{"0:point(1,2,0)"}, doc.calls)
}

func TestBuild_Failures(t *testing.T) {
	t.Run("forbidden layer name", func(t *testing.T) {
		doc := newRecordingDoc()
		job, err := NewJob(samplePoints(), Options{LayerName: "a/b"})
		require.NoError(t, err)

		got, err := newTestExporter(doc).Build(job)
		assert.ErrorIs(t, err, apperr.ErrExportFailure)
		assert.Nil(t, got)
		assert.Empty(t, doc.calls)
	})

	t.Run("shape rejected", func(t *testing.T) {
		doc := newRecordingDoc()
		doc.failAt = 1
		job, err := NewJob(samplePoints(), Options{})
		require.NoError(t, err)

		got, err := newTestExporter(doc).Build(job)
		assert.ErrorIs(t, err, apperr.ErrExportFailure)
		assert.Contains(t, err.Error(), "entity rejected")
		assert.Nil(t, got)
	})
}

func TestExport_WritesDXF(t *testing.T) {
	e := NewExporter(nil, zerolog.Nop())

	job, err := NewJob([]coords.Point{{Label: "P1", X: 1, Y: 2}, {X: 3, Y: 4}}, Options{LayerName: "KUI"})
	require.NoError(t, err)

	data, err := e.Export(job)
	require.NoError(t, err)

	out := string(data)
	assert.Contains(t, out, "KUI")
	assert.Contains(t, out, "POINT")
	assert.Contains(t, out, "TEXT")
	assert.Contains(t, out, "P1")
	assert.Contains(t, out, "EOF")

	circleJob, err := NewJob(job.Points, Options{ShapeKind: "circle", Radius: "2"})
	require.NoError(t, err)
	data, err = e.Export(circleJob)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CIRCLE")
}
