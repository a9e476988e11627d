// Package exifdata extracts embedded capture metadata from images and
// derives the decade estimate used to shelve assets in the archive.
package exifdata

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Metadata holds the fields the enrichment stage records for an image.
// Every field is optional; cameras and scanners routinely omit most of them.
type Metadata struct {
	CaptureAt   *time.Time
	CameraMake  string
	CameraModel string
	Orientation int
	Latitude    *float64
	Longitude   *float64
	RawJSON     string
}

// Extract reads the EXIF block from the image at path. A missing or
// malformed EXIF block is not an error; the returned metadata is simply
// empty. Only an unreadable file fails.
func Extract(path string) (*Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	meta := &Metadata{}
	decoded, err := exif.Decode(file)
	if err != nil {
		return meta, nil
	}

	if ts, err := decoded.DateTime(); err == nil {
		utc := ts.UTC()
		meta.CaptureAt = &utc
	}
	if lat, long, err := decoded.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &long
	}
	meta.CameraMake = tagString(decoded, exif.Make)
	meta.CameraModel = tagString(decoded, exif.Model)
	if tag, err := decoded.Get(exif.Orientation); err == nil {
		if value, err := tag.Int(0); err == nil {
			meta.Orientation = value
		}
	}
	if raw, err := json.Marshal(decoded); err == nil {
		meta.RawJSON = string(raw)
	}
	return meta, nil
}

func tagString(decoded *exif.Exif, name exif.FieldName) string {
	tag, err := decoded.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return value
}

// Filenames from scanned albums often carry the year even when the file has
// no EXIF block: IMG_19850615_001.jpg, christmas_1972_slide.png.
var yearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})[_-]?\d{2}[_-]?\d{2}`),
	regexp.MustCompile(`[_-](\d{4})[_-]`),
	regexp.MustCompile(`(19\d{2}|20\d{2})`),
}

const (
	minPlausibleYear = 1940
	maxPlausibleYear = 2030
)

// EstimateDecade derives the archive decade for an asset. The capture
// timestamp wins when present; otherwise the original filename is scanned
// for a plausible year. Returns 0 when no estimate can be made.
func EstimateDecade(captureAt *time.Time, filename string) int {
	if captureAt != nil {
		return captureAt.Year() / 10 * 10
	}
	for _, pattern := range yearPatterns {
		match := pattern.FindStringSubmatch(filename)
		if match == nil {
			continue
		}
		year, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if year >= minPlausibleYear && year <= maxPlausibleYear {
			return year / 10 * 10
		}
	}
	return 0
}
