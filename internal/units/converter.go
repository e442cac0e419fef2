package units

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"shokucho.jp/portal/internal/apperr"
	"shokucho.jp/portal/internal/utils"
)

// ResultPlaces is the number of decimal places every Result is rounded to.
const ResultPlaces = 6

// Mode selects between unit-to-unit and volume/mass conversion.
type Mode string

const (
	ModeUnit     Mode = "unit"
	ModeMaterial Mode = "material"
)

// Direction of a material conversion.
type Direction string

const (
	VolumeToMass Direction = "vol_to_mass"
	MassToVolume Direction = "mass_to_vol"
)

// Request is one conversion as submitted by a form. Value is kept raw so
// parsing failures surface as INVALID_NUMBER.
type Request struct {
	Mode        Mode
	Category    Category
	FromUnit    string
	ToUnit      string
	Value       string
	Direction   Direction
	MaterialKey string
}

// Result is the outcome of a conversion.
type Result struct {
	Mode          Mode     `json:"mode"`
	ValueIn       float64  `json:"value_in"`
	UnitIn        string   `json:"unit_in"`
	UnitOut       string   `json:"unit_out"`
	ValueOut      float64  `json:"value_out"`
	MaterialLabel string   `json:"material_label,omitempty"`
	Density       *float64 `json:"density,omitempty"`
}

// Converter converts values using an immutable copy of Tables.
type Converter struct {
	tables    Tables
	scales    map[Category]map[string]float64
	materials map[string]Material
}

// NewConverter validates tables and indexes them for lookup.
func NewConverter(tables Tables) (*Converter, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("invalid unit tables: %w", err)
	}

	c := &Converter{
		tables: Tables{
			Units:     make(map[Category][]Unit, len(tables.Units)),
			Materials: append([]Material(nil), tables.Materials...),
		},
		scales:    make(map[Category]map[string]float64, len(tables.Units)),
		materials: make(map[string]Material, len(tables.Materials)),
	}
	for cat, list := range tables.Units {
		c.tables.Units[cat] = append([]Unit(nil), list...)
		scales := make(map[string]float64, len(list))
		for _, u := range list {
			scales[u.Symbol] = u.Scale
		}
		c.scales[cat] = scales
	}
	for _, m := range c.tables.Materials {
		c.materials[m.Key] = m
	}
	return c, nil
}

// Units returns the units of a category in display order.
func (c *Converter) Units(cat Category) []Unit {
	return append([]Unit(nil), c.tables.Units[cat]...)
}

// Materials returns the materials in display order.
func (c *Converter) Materials() []Material {
	return append([]Material(nil), c.tables.Materials...)
}

// ConvertUnit converts value from one unit to another within a category by
// normalizing to the category base unit and back. The result is not rounded.
func (c *Converter) ConvertUnit(value float64, from, to string, cat Category) (float64, error) {
	if _, ok := c.scales[cat]; !ok {
		return 0, apperr.Newf(apperr.CodeInvalidCategory, "unknown category %q", cat)
	}
	fromScale, err := c.scale(cat, from)
	if err != nil {
		return 0, err
	}
	toScale, err := c.scale(cat, to)
	if err != nil {
		return 0, err
	}

	if from == to {
		return value, nil
	}

	base := value * fromScale
	out := base / toScale
	if math.IsInf(out, 0) {
		return 0, apperr.New(apperr.CodeInvalidNumber, "value out of range")
	}
	return out, nil
}

// ConvertMaterial converts a volume to a mass (or back) through the density
// of a material. The result is rounded to ResultPlaces.
func (c *Converter) ConvertMaterial(value float64, dir Direction, materialKey, volUnit, massUnit string) (float64, Material, error) {
	m, ok := c.materials[materialKey]
	if !ok {
		return 0, Material{}, apperr.Newf(apperr.CodeInvalidMaterial, "unknown material %q", materialKey)
	}

	volScale, err := c.scale(Volume, volUnit)
	if err != nil {
		return 0, Material{}, err
	}
	massScale, err := c.scale(Weight, massUnit)
	if err != nil {
		return 0, Material{}, err
	}

	var out float64
	switch dir {
	case VolumeToMass:
		m3 := value * volScale
		kg := m3 * m.Density
		out = kg / massScale
	case MassToVolume:
		kg := value * massScale
		m3 := kg / m.Density
		out = m3 / volScale
	default:
		return 0, Material{}, apperr.Validationf("unknown direction %q", dir)
	}
	if math.IsInf(out, 0) {
		return 0, Material{}, apperr.New(apperr.CodeInvalidNumber, "value out of range")
	}

	return Round(out), m, nil
}

func (c *Converter) scale(cat Category, symbol string) (float64, error) {
	v, ok := c.scales[cat][symbol]
	if !ok {
		return 0, apperr.Newf(apperr.CodeInvalidUnit, "unknown %s unit %q", cat, symbol)
	}
	return v, nil
}

// Convert parses and runs a Request.
func (c *Converter) Convert(req Request) (Result, error) {
	value, err := utils.ParseNumber(req.Value)
	if err != nil {
		return Result{}, apperr.Wrap(err, apperr.CodeInvalidNumber, "value must be a number")
	}

	switch req.Mode {
	case ModeUnit:
		out, err := c.ConvertUnit(value, req.FromUnit, req.ToUnit, req.Category)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Mode:     ModeUnit,
			ValueIn:  value,
			UnitIn:   req.FromUnit,
			UnitOut:  req.ToUnit,
			ValueOut: Round(out),
		}, nil

	case ModeMaterial:
		// FromUnit is the unit the value is given in.
		volUnit, massUnit := req.FromUnit, req.ToUnit
		if req.Direction == MassToVolume {
			volUnit, massUnit = req.ToUnit, req.FromUnit
		}
		out, m, err := c.ConvertMaterial(value, req.Direction, req.MaterialKey, volUnit, massUnit)
		if err != nil {
			return Result{}, err
		}
		density := m.Density
		return Result{
			Mode:          ModeMaterial,
			ValueIn:       value,
			UnitIn:        req.FromUnit,
			UnitOut:       req.ToUnit,
			ValueOut:      out,
			MaterialLabel: m.Label,
			Density:       &density,
		}, nil
	}

	return Result{}, apperr.Validationf("unknown conversion mode %q", req.Mode)
}

// Round rounds v half away from zero to ResultPlaces decimal places.
func Round(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(ResultPlaces).Float64()
	return f
}
