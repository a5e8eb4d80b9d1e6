package raster

import (
	"bytes"
	"fmt"
	"github.com/paulkoehlerdev/spillway/pkg/libraries/archive"
	"github.com/paulkoehlerdev/spillway/pkg/spillway/domain/entities"
	"golang.org/x/image/tiff"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	jpegQuality = 90

	// TIFFNoData is the sample written for nodata pixels. Valid values must
	// be whole numbers below it.
	TIFFNoData = math.MaxUint16
)

// Encode writes r as an image. TIFF stores values losslessly as unsigned
// 16-bit samples and rejects rasters that do not fit. PNG and JPEG stretch
// the valid range to 8-bit greys.
func Encode(w io.Writer, r entities.Raster, f entities.Format) error {
	var err error
	switch f {
	case entities.FormatTIFF:
		var img *image.Gray16
		if img, err = gray16(r); err != nil {
			return err
		}
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case entities.FormatPNG:
		err = png.Encode(w, gray8(r))
	case entities.FormatJPEG:
		err = jpeg.Encode(w, gray8(r), &jpeg.Options{Quality: jpegQuality})
	default:
		return fmt.Errorf("%w: raster cannot be encoded as %s", entities.ErrUnsupportedFormat, f)
	}
	if err != nil {
		return fmt.Errorf("failed to encode raster %d as %s: %w", r.ID, f, err)
	}
	return nil
}

// EncodeArchive zips the encoded image together with its world file. TIFF
// archives also carry a GDAL .aux.xml naming the nodata sample.
func EncodeArchive(r entities.Raster, f entities.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r, f); err != nil {
		return nil, err
	}

	name := r.Name
	if name == "" {
		name = "raster-" + strconv.FormatInt(r.ID, 10)
	}
	imageName := name + "." + string(f)
	files := []archive.File{
		{Name: imageName, Data: buf.Bytes()},
		{Name: name + "." + worldFileExtension(f), Data: []byte(WorldFile(r.Affine))},
	}
	if f == entities.FormatTIFF {
		files = append(files, archive.File{Name: imageName + ".aux.xml", Data: []byte(auxNoData)})
	}
	return archive.Zip(files...)
}

var auxNoData = `<PAMDataset>
  <PAMRasterBand band="1">
    <NoDataValue>` + strconv.Itoa(TIFFNoData) + `</NoDataValue>
  </PAMRasterBand>
</PAMDataset>
`

// WorldFile renders the six line ESRI world file for a geotransform. The
// translation refers to the centre of the upper left pixel.
func WorldFile(a entities.Affine) string {
	centre := a.Forward(0.5, 0.5)
	lines := []float64{a[1], a[4], a[2], a[5], centre[0], centre[1]}

	var b strings.Builder
	for _, v := range lines {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}

func worldFileExtension(f entities.Format) string {
	ext := string(f)
	return ext[:1] + ext[len(ext)-1:] + "w"
}

func gray16(r entities.Raster) (*image.Gray16, error) {
	img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			v, ok := r.At(col, row)
			if !ok {
				img.SetGray16(col, row, color.Gray16{Y: TIFFNoData})
				continue
			}
			if v < 0 || v >= TIFFNoData || v != math.Trunc(v) {
				return nil, fmt.Errorf("%w: raster %d value %v at %d,%d does not fit an unsigned 16-bit sample",
					entities.ErrUnsupportedFormat, r.ID, v, col, row)
			}
			img.SetGray16(col, row, color.Gray16{Y: uint16(v)})
		}
	}
	return img, nil
}

func gray8(r entities.Raster) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
	lo, hi, ok := MinMax(r)
	if !ok {
		return img
	}
	span := hi - lo
	for row := 0; row < r.Height; row++ {
		for col := 0; col < r.Width; col++ {
			v, ok := r.At(col, row)
			if !ok {
				continue
			}
			y := 255.0
			if span > 0 {
				y = (v - lo) / span * 255
			}
			img.SetGray(col, row, color.Gray{Y: uint8(math.Round(y))})
		}
	}
	return img
}
