// Package units wraps shopspring/decimal for the three measures the fleet
// domain cares about, so fuel and LPG arithmetic never drifts the way plain
// float64 accumulation would over a multi-day simulation run.
package units

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Volume is an amount of LPG in cubic meters.
type Volume struct{ d decimal.Decimal }

// Fuel is an amount of diesel in gallons.
type Fuel struct{ d decimal.Decimal }

// Distance is a length in kilometers.
type Distance struct{ d decimal.Decimal }

func VolumeFromInt(m3 int) Volume       { return Volume{decimal.NewFromInt(int64(m3))} }
func VolumeFromFloat(m3 float64) Volume { return Volume{decimal.NewFromFloat(m3)} }
func FuelFromFloat(gal float64) Fuel    { return Fuel{decimal.NewFromFloat(gal)} }
func DistanceFromKm(km int) Distance    { return Distance{decimal.NewFromInt(int64(km))} }

func (v Volume) Float() float64   { f, _ := v.d.Float64(); return f }
func (f Fuel) Float() float64     { x, _ := f.d.Float64(); return x }
func (d Distance) Float() float64 { f, _ := d.d.Float64(); return f }

func (v Volume) Add(o Volume) Volume { return Volume{v.d.Add(o.d)} }
func (v Volume) Sub(o Volume) Volume { return Volume{v.d.Sub(o.d)} }
func (v Volume) Cmp(o Volume) int    { return v.d.Cmp(o.d) }
func (v Volume) IsZero() bool        { return v.d.IsZero() }
func (v Volume) LessThan(o Volume) bool {
	return v.d.LessThan(o.d)
}
func (v Volume) GreaterThanOrEqual(o Volume) bool {
	return v.d.GreaterThanOrEqual(o.d)
}
func (v Volume) Min(o Volume) Volume {
	if v.d.LessThan(o.d) {
		return v
	}
	return o
}

func (f Fuel) Sub(o Fuel) Fuel { return Fuel{f.d.Sub(o.d)} }
func (f Fuel) Add(o Fuel) Fuel { return Fuel{f.d.Add(o.d)} }
func (f Fuel) LessThan(o Fuel) bool {
	return f.d.LessThan(o.d)
}
func (f Fuel) GreaterThanOrEqual(o Fuel) bool {
	return f.d.GreaterThanOrEqual(o.d)
}

func (d Distance) Add(o Distance) Distance { return Distance{d.d.Add(o.d)} }

func (v Volume) String() string   { return fmt.Sprintf("%sm3", v.d.StringFixed(2)) }
func (f Fuel) String() string     { return fmt.Sprintf("%sgal", f.d.StringFixed(3)) }
func (d Distance) String() string { return fmt.Sprintf("%skm", d.d.StringFixed(1)) }

// FuelForLeg implements the spec's fuel model:
// distance_km * combined_weight_tons / 180 gallons.
func FuelForLeg(km Distance, combinedWeightTons float64) Fuel {
	gal := km.d.Mul(decimal.NewFromFloat(combinedWeightTons)).Div(decimal.NewFromInt(180))
	return Fuel{gal}
}
