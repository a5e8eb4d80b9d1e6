package entities

// Layer is a named collection of features sharing one native SRID.
type Layer struct {
	Name string       `json:"name"`
	SRID int          `json:"srid"`
	Kind GeometryKind `json:"kind"`
}
