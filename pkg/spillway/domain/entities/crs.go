package entities

import "fmt"

// NamedCRS is the GeoJSON "name" coordinate reference system member.
type NamedCRS struct {
	Type       string             `json:"type"`
	Properties NamedCRSProperties `json:"properties"`
}

type NamedCRSProperties struct {
	Name string `json:"name"`
}

func NewNamedCRS(srid int) NamedCRS {
	return NamedCRS{
		Type: "name",
		Properties: NamedCRSProperties{
			Name: fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", srid),
		},
	}
}
