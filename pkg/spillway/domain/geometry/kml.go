package geometry

import (
	"encoding/xml"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/archive"
	"github.com/paulmach/orb"
	"io"
	"sort"
	"strconv"
	"strings"
)

const kmlNamespace = "http://www.opengis.net/kml/2.2"

// Placemark is one feature of a KML document. Geometry is expected in SRID 4326.
type Placemark struct {
	Name        string
	Description string
	Properties  map[string]any
	Geometry    orb.Geometry
}

type kmlDocument struct {
	XMLName  xml.Name `xml:"kml"`
	XMLNS    string   `xml:"xmlns,attr"`
	Document struct {
		Name       string         `xml:"name,omitempty"`
		Placemarks []kmlPlacemark `xml:"Placemark"`
	} `xml:"Document"`
}

type kmlPlacemark struct {
	Name         string           `xml:"name,omitempty"`
	Description  string           `xml:"description,omitempty"`
	ExtendedData *kmlExtendedData `xml:"ExtendedData,omitempty"`
	kmlGeometry
}

type kmlExtendedData struct {
	Data []kmlData `xml:"Data"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlGeometry struct {
	Point      *kmlCoords  `xml:"Point,omitempty"`
	LineString *kmlCoords  `xml:"LineString,omitempty"`
	Polygon    *kmlPolygon `xml:"Polygon,omitempty"`
	Multi      *kmlMulti   `xml:"MultiGeometry,omitempty"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlBoundary   `xml:"outerBoundaryIs"`
	Inner []kmlBoundary `xml:"innerBoundaryIs"`
}

type kmlBoundary struct {
	Ring kmlCoords `xml:"LinearRing"`
}

type kmlMulti struct {
	Points      []kmlCoords  `xml:"Point"`
	LineStrings []kmlCoords  `xml:"LineString"`
	Polygons    []kmlPolygon `xml:"Polygon"`
}

// EncodeKML writes placemarks as a KML 2.2 document.
func EncodeKML(w io.Writer, name string, placemarks []Placemark) error {
	doc := kmlDocument{XMLNS: kmlNamespace}
	doc.Document.Name = name

	for _, p := range placemarks {
		doc.Document.Placemarks = append(doc.Document.Placemarks, kmlPlacemark{
			Name:         p.Name,
			Description:  p.Description,
			ExtendedData: toExtendedData(p.Properties),
			kmlGeometry:  toKMLGeometry(p.Geometry),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write kml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode kml: %w", err)
	}
	return nil
}

// EncodeKMZ returns the KML document zipped as doc.kml.
func EncodeKMZ(name string, placemarks []Placemark) ([]byte, error) {
	var b strings.Builder
	if err := EncodeKML(&b, name, placemarks); err != nil {
		return nil, err
	}
	return archive.Zip(archive.File{Name: "doc.kml", Data: []byte(b.String())})
}

func toExtendedData(props map[string]any) *kmlExtendedData {
	if len(props) == 0 {
		return nil
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := &kmlExtendedData{}
	for _, k := range keys {
		data.Data = append(data.Data, kmlData{Name: k, Value: fmt.Sprint(props[k])})
	}
	return data
}

func toKMLGeometry(g orb.Geometry) kmlGeometry {
	switch g := g.(type) {
	case orb.Point:
		return kmlGeometry{Point: &kmlCoords{kmlCoordinates(g)}}
	case orb.LineString:
		return kmlGeometry{LineString: &kmlCoords{kmlCoordinates(g...)}}
	case orb.Ring:
		p := toKMLPolygon(orb.Polygon{g})
		return kmlGeometry{Polygon: &p}
	case orb.Polygon:
		p := toKMLPolygon(g)
		return kmlGeometry{Polygon: &p}
	case orb.Bound:
		p := toKMLPolygon(g.ToPolygon())
		return kmlGeometry{Polygon: &p}
	case orb.MultiPoint, orb.MultiLineString, orb.MultiPolygon, orb.Collection:
		m := &kmlMulti{}
		appendKMLMulti(m, g)
		return kmlGeometry{Multi: m}
	}
	return kmlGeometry{}
}

func appendKMLMulti(m *kmlMulti, g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		m.Points = append(m.Points, kmlCoords{kmlCoordinates(g)})
	case orb.MultiPoint:
		for _, p := range g {
			appendKMLMulti(m, p)
		}
	case orb.LineString:
		m.LineStrings = append(m.LineStrings, kmlCoords{kmlCoordinates(g...)})
	case orb.MultiLineString:
		for _, ls := range g {
			appendKMLMulti(m, ls)
		}
	case orb.Ring:
		m.Polygons = append(m.Polygons, toKMLPolygon(orb.Polygon{g}))
	case orb.Polygon:
		m.Polygons = append(m.Polygons, toKMLPolygon(g))
	case orb.MultiPolygon:
		for _, p := range g {
			appendKMLMulti(m, p)
		}
	case orb.Collection:
		for _, c := range g {
			appendKMLMulti(m, c)
		}
	}
}

func toKMLPolygon(p orb.Polygon) kmlPolygon {
	var out kmlPolygon
	for i, r := range p {
		b := kmlBoundary{Ring: kmlCoords{kmlCoordinates(r...)}}
		if i == 0 {
			out.Outer = b
			continue
		}
		out.Inner = append(out.Inner, b)
	}
	return out
}

func kmlCoordinates(pts ...orb.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}
