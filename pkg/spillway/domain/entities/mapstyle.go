package entities

// MapStyle for reference see: https://docs.mapbox.com/style-spec/reference/root
type MapStyle struct {
	Version int               `json:"version"` // must be 8
	Name    string            `json:"name,omitempty"`
	Layers  []StyleLayer      `json:"layers"`
	Sources map[string]Source `json:"sources"`
}

// StyleLayer for reference see: https://docs.mapbox.com/style-spec/reference/layers
type StyleLayer struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Source      string `json:"source"`
	SourceLayer string `json:"source-layer"`
	Paint       Paint  `json:"paint"`
}

// Paint for reference see: https://docs.mapbox.com/style-spec/reference/layers/#paint
type Paint struct {
	*FillPaint
	*LinePaint
	*CirclePaint
}

// FillPaint for reference see: https://docs.mapbox.com/style-spec/reference/layers#fill
type FillPaint struct {
	FillColor        *string  `json:"fill-color,omitempty"`
	FillOutlineColor *string  `json:"fill-outline-color,omitempty"`
	FillOpacity      *float64 `json:"fill-opacity,omitempty"`
}

// LinePaint for reference see: https://docs.mapbox.com/style-spec/reference/layers#line
type LinePaint struct {
	LineColor *string  `json:"line-color,omitempty"`
	LineWidth *float64 `json:"line-width,omitempty"`
}

// CirclePaint for reference see: https://docs.mapbox.com/style-spec/reference/layers#circle
type CirclePaint struct {
	CircleColor  *string  `json:"circle-color,omitempty"`
	CircleRadius *float64 `json:"circle-radius,omitempty"`
}

// Source for reference see: https://docs.mapbox.com/style-spec/reference/sources
type Source struct {
	Type      string    `json:"type"`
	TilesURLs []string  `json:"tiles"`
	MinZoom   int       `json:"minzoom"`
	MaxZoom   int       `json:"maxzoom"`
	Bounds    []float64 `json:"bounds,omitempty"`
}
