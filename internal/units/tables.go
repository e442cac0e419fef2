// Package units converts values between units of the same category and
// between volume and mass through a material's density.
package units

import (
	"fmt"
	"math"
)

// Category groups units that share a base unit.
type Category string

const (
	Length Category = "length" // base: m
	Weight Category = "weight" // base: kg
	Volume Category = "volume" // base: m3
)

// Categories lists every category in display order.
var Categories = []Category{Length, Weight, Volume}

// Unit is a unit symbol and how many base units one of it is worth.
type Unit struct {
	Symbol string  `json:"symbol"`
	Label  string  `json:"label"`
	Scale  float64 `json:"scale"`
}

// Material is a named material with its density in kg/m3.
type Material struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Density float64 `json:"density"`
}

// Tables holds the unit and material data the Converter works from.
// Slices keep the order forms present them in.
type Tables struct {
	Units     map[Category][]Unit
	Materials []Material
}

// DefaultTables returns a fresh copy of the built-in tables.
func DefaultTables() Tables {
	return Tables{
		Units: map[Category][]Unit{
			Length: {
				{Symbol: "mm", Label: "ミリメートル", Scale: 0.001},
				{Symbol: "cm", Label: "センチメートル", Scale: 0.01},
				{Symbol: "m", Label: "メートル", Scale: 1},
				{Symbol: "km", Label: "キロメートル", Scale: 1000},
				{Symbol: "in", Label: "インチ", Scale: 0.0254},
				{Symbol: "ft", Label: "フィート", Scale: 0.3048},
				{Symbol: "yd", Label: "ヤード", Scale: 0.9144},
				{Symbol: "sun", Label: "寸", Scale: 1.0 / 33},
				{Symbol: "shaku", Label: "尺", Scale: 10.0 / 33},
				{Symbol: "ken", Label: "間", Scale: 60.0 / 33},
			},
			Weight: {
				{Symbol: "mg", Label: "ミリグラム", Scale: 0.000001},
				{Symbol: "g", Label: "グラム", Scale: 0.001},
				{Symbol: "kg", Label: "キログラム", Scale: 1},
				{Symbol: "t", Label: "トン", Scale: 1000},
				{Symbol: "lb", Label: "ポンド", Scale: 0.45359237},
				{Symbol: "oz", Label: "オンス", Scale: 0.028349523125},
				{Symbol: "kan", Label: "貫", Scale: 3.75},
			},
			Volume: {
				{Symbol: "ml", Label: "ミリリットル", Scale: 0.000001},
				{Symbol: "cm3", Label: "立方センチメートル", Scale: 0.000001},
				{Symbol: "l", Label: "リットル", Scale: 0.001},
				{Symbol: "m3", Label: "立方メートル", Scale: 1},
				{Symbol: "gal", Label: "ガロン(米)", Scale: 0.003785411784},
				{Symbol: "sho", Label: "升", Scale: 2401.0 / 1331000},
			},
		},
		Materials: []Material{
			{Key: "concrete_rebar", Label: "鉄筋コンクリート", Density: 2400},
			{Key: "concrete_plain", Label: "無筋コンクリート", Density: 2300},
			{Key: "asphalt", Label: "アスファルト混合物", Density: 2350},
			{Key: "steel", Label: "鋼材", Density: 7850},
			{Key: "aluminium", Label: "アルミニウム", Density: 2700},
			{Key: "crushed_stone", Label: "砕石", Density: 2000},
			{Key: "sand", Label: "砂(乾燥)", Density: 1600},
			{Key: "soil", Label: "土砂", Density: 1800},
			{Key: "water", Label: "水", Density: 1000},
			{Key: "timber", Label: "木材(杉)", Density: 380},
		},
	}
}

// Validate checks that symbols are unique per category, material keys are
// unique, and every scale and density is a positive finite number.
func (t Tables) Validate() error {
	for _, cat := range Categories {
		units, ok := t.Units[cat]
		if !ok || len(units) == 0 {
			return fmt.Errorf("category %q has no units", cat)
		}
		seen := make(map[string]bool, len(units))
		for _, u := range units {
			if u.Symbol == "" {
				return fmt.Errorf("category %q has a unit without a symbol", cat)
			}
			if seen[u.Symbol] {
				return fmt.Errorf("duplicate unit %q in category %q", u.Symbol, cat)
			}
			seen[u.Symbol] = true
			if !positiveFinite(u.Scale) {
				return fmt.Errorf("unit %q in category %q has invalid scale %v", u.Symbol, cat, u.Scale)
			}
		}
	}
	for cat := range t.Units {
		if !cat.Valid() {
			return fmt.Errorf("unknown category %q", cat)
		}
	}

	seen := make(map[string]bool, len(t.Materials))
	for _, m := range t.Materials {
		if m.Key == "" {
			return fmt.Errorf("material without a key")
		}
		if seen[m.Key] {
			return fmt.Errorf("duplicate material %q", m.Key)
		}
		seen[m.Key] = true
		if !positiveFinite(m.Density) {
			return fmt.Errorf("material %q has invalid density %v", m.Key, m.Density)
		}
	}
	return nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case Length, Weight, Volume:
		return true
	}
	return false
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
