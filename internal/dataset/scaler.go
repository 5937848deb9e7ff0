// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import "slices"

// Scaler records the min-max transform applied to the targets so that
// predictions can be mapped back after training.
type Scaler struct {
	DataMin    float64 `json:"data_min" yaml:"data_min"`
	DataMax    float64 `json:"data_max" yaml:"data_max"`
	FeatureMin float64 `json:"feature_min" yaml:"feature_min"`
	FeatureMax float64 `json:"feature_max" yaml:"feature_max"`
	Scale      float64 `json:"scale" yaml:"scale"`
	Min        float64 `json:"min" yaml:"min"`
	Required   bool    `json:"required" yaml:"required"`
}

// NewScaler maps [dataMin, dataMax] onto [featureMin, featureMax]. A
// constant range is treated as width 1.
func NewScaler(dataMin, dataMax, featureMin, featureMax float64) Scaler {
	dataRange := dataMax - dataMin
	if dataRange == 0 {
		dataRange = 1
	}
	scale := (featureMax - featureMin) / dataRange
	return Scaler{
		DataMin:    dataMin,
		DataMax:    dataMax,
		FeatureMin: featureMin,
		FeatureMax: featureMax,
		Scale:      scale,
		Min:        featureMin - dataMin*scale,
		Required:   true,
	}
}

// Transform applies the scaling to v.
func (s Scaler) Transform(v float64) float64 {
	if !s.Required {
		return v
	}
	return v*s.Scale + s.Min
}

// InverseScale maps scaled values back onto the original target range in
// place. It is a no-op when no scaling was applied.
func (s Scaler) InverseScale(values []float64) {
	if !s.Required {
		return
	}
	for i := range values {
		values[i] = (values[i] - s.Min) / s.Scale
	}
}

// ScaleY rescales the targets into [lower, upper] when at least one of
// them lies outside that interval, and records the transform in
// d.Scaler. Targets already inside the interval are left alone.
func (d *DataSet) ScaleY(lower, upper float64) {
	required := false
	for _, v := range d.Y {
		if v < lower || v > upper {
			required = true
			break
		}
	}
	if !required || d.Empty() {
		d.Scaler = Scaler{}
		return
	}

	s := NewScaler(slices.Min(d.Y), slices.Max(d.Y), lower, upper)
	for i, v := range d.Y {
		d.Y[i] = s.Transform(v)
	}
	d.Scaler = s
}
