package dxfexport

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/yofu/dxf"
	"github.com/yofu/dxf/drawing"
)

// Document is the subset of a DXF drawing the exporter needs.
type Document interface {
	// UseLayer makes name the current layer, creating it if absent.
	UseLayer(name string) error
	AddPoint(x, y, z float64) error
	AddText(text string, x, y, z, height float64) error
	AddCircle(x, y, z, r float64) error
	// Bytes serializes the drawing.
	Bytes() ([]byte, error)
}

// NewDocumentFunc creates an empty Document.
type NewDocumentFunc func() Document

// dxfDocument adapts a yofu/dxf drawing to Document.
type dxfDocument struct {
	d *drawing.Drawing
}

// NewDXFDocument returns an empty drawing backed by github.com/yofu/dxf.
func NewDXFDocument() Document {
	return &dxfDocument{d: dxf.NewDrawing()}
}

func (doc *dxfDocument) UseLayer(name string) error {
	if err := doc.d.ChangeLayer(name); err == nil {
		return nil
	}
	if _, err := doc.d.AddLayer(name, dxf.DefaultColor, dxf.DefaultLineType, true); err != nil {
		return fmt.Errorf("failed to add layer %q: %w", name, err)
	}
	return nil
}

func (doc *dxfDocument) AddPoint(x, y, z float64) error {
	_, err := doc.d.Point(x, y, z)
	return err
}

func (doc *dxfDocument) AddText(text string, x, y, z, height float64) error {
	_, err := doc.d.Text(text, x, y, z, height)
	return err
}

func (doc *dxfDocument) AddCircle(x, y, z, r float64) error {
	_, err := doc.d.Circle(x, y, z, r)
	return err
}

// Bytes saves the drawing to a private temporary directory and reads it
// back; the library only writes to named files.
func (doc *dxfDocument) Bytes() ([]byte, error) {
	dir, err := os.MkdirTemp("", "dxfexport-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, uuid.NewString()+".dxf")
	if err := doc.d.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save drawing: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read drawing: %w", err)
	}
	return data, nil
}
