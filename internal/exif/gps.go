// Package exif extracts GPS coordinates from photo metadata. A direct
// GPS-tag read is tried first; a more permissive tag scan acts as fallback.
// Parse failures are swallowed: the only outcomes are a coordinate pair
// or nothing.
package exif

import (
	"bytes"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"
)

// Coordinates is a decimal-degree GPS position read from photo metadata.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// File is a named in-memory photo candidate for GPS extraction.
type File struct {
	Name string
	Data []byte
}

// ReadFunc attempts to pull GPS coordinates out of one photo's bytes.
type ReadFunc func(data []byte) (*Coordinates, error)

// Extractor tries candidate files in order and returns the first GPS fix.
type Extractor struct {
	primary  ReadFunc
	fallback ReadFunc
}

// NewExtractor builds an Extractor with the default tag readers.
func NewExtractor() *Extractor {
	return &Extractor{primary: readLatLong, fallback: readRawTags}
}

// NewExtractorWithReaders builds an Extractor with explicit readers,
// used by tests and by callers with custom metadata sources.
func NewExtractorWithReaders(primary, fallback ReadFunc) *Extractor {
	return &Extractor{primary: primary, fallback: fallback}
}

// Extract attempts GPS extraction file-by-file and returns the first
// success, or nil when no candidate yields coordinates. Errors from either
// reader are treated as "no GPS found", never as a failure.
func (e *Extractor) Extract(files []File) *Coordinates {
	for _, f := range files {
		if c := e.extractOne(f); c != nil {
			return c
		}
	}
	return nil
}

func (e *Extractor) extractOne(f File) *Coordinates {
	if e.primary != nil {
		c, err := e.primary(f.Data)
		if err == nil && c != nil {
			return c
		}
	}
	if e.fallback != nil {
		c, err := e.fallback(f.Data)
		if err == nil && c != nil {
			return c
		}
		if err != nil {
			zap.L().Debug("exif: no gps in file", zap.String("file", f.Name), zap.Error(err))
		}
	}
	return nil
}

// readLatLong is the direct GPS read using the library's own tag math.
func readLatLong(data []byte) (*Coordinates, error) {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	lat, lng, err := x.LatLong()
	if err != nil {
		return nil, err
	}
	return &Coordinates{Latitude: lat, Longitude: lng}, nil
}

// readRawTags re-reads the GPS IFD directly. It accepts both a single
// pre-computed decimal value and the usual degree/minute/second rational
// triplet, negating for S and W hemisphere references.
func readRawTags(data []byte) (*Coordinates, error) {
	x, err := goexif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	lat, err := rawCoordinate(x, goexif.GPSLatitude, goexif.GPSLatitudeRef)
	if err != nil {
		return nil, err
	}
	lng, err := rawCoordinate(x, goexif.GPSLongitude, goexif.GPSLongitudeRef)
	if err != nil {
		return nil, err
	}
	return &Coordinates{Latitude: lat, Longitude: lng}, nil
}

func rawCoordinate(x *goexif.Exif, tag, refTag goexif.FieldName) (float64, error) {
	t, err := x.Get(tag)
	if err != nil {
		return 0, err
	}

	parts := make([]float64, 0, 3)
	for i := 0; i < int(t.Count); i++ {
		num, den, err := t.Rat2(i)
		if err != nil || den == 0 {
			break
		}
		parts = append(parts, float64(num)/float64(den))
	}

	val, ok := DMSToDecimal(parts)
	if !ok {
		return 0, errNoComponents
	}

	if rt, err := x.Get(refTag); err == nil {
		if ref, err := rt.StringVal(); err == nil {
			val = ApplyRef(val, ref)
		}
	}
	return val, nil
}

var errNoComponents = tagError("gps tag has no numeric components")

type tagError string

func (e tagError) Error() string { return string(e) }

// DMSToDecimal converts degree/minute/second components to decimal degrees.
// A single component is taken as an already-decimal value.
func DMSToDecimal(parts []float64) (float64, bool) {
	switch len(parts) {
	case 0:
		return 0, false
	case 1:
		return parts[0], true
	case 2:
		return parts[0] + parts[1]/60, true
	default:
		return parts[0] + parts[1]/60 + parts[2]/3600, true
	}
}

// ApplyRef negates a coordinate for southern or western hemisphere letters.
func ApplyRef(val float64, ref string) float64 {
	switch strings.ToUpper(strings.TrimSpace(ref)) {
	case "S", "W":
		if val > 0 {
			return -val
		}
	}
	return val
}
