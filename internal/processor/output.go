package processor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/geotrack/internal/track"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatGeoJSON = "geojson"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
)

// Write encodes a result in the given format.
// Precision applies to GeoJSON output only.
func Write(w io.Writer, res *Result, format string, precision int) error {
	switch format {
	case FormatGeoJSON, "":
		return track.WriteGeoJSON(w, track.FeatureCollection(res.TrackPoints, res.Properties()), precision)

	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}

	return fmt.Errorf("unknown output format %q", format)
}

// OutputName derives an output file name from a source location.
func OutputName(source, format string) string {
	base := path.Base(strings.SplitN(source, "?", 2)[0])
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "track"
	}
	if format == "" {
		format = FormatGeoJSON
	}
	return base + "." + format
}

// OutputNames derives one file name per source. Sources sharing a base name
// get a suffix derived from the full source, so no two names are equal.
func OutputNames(sources []string, format string) []string {
	names := make([]string, len(sources))
	count := make(map[string]int, len(sources))
	for i, src := range sources {
		names[i] = OutputName(src, format)
		count[names[i]]++
	}

	used := make(map[string]bool, len(sources))
	for i, src := range sources {
		if count[names[i]] > 1 {
			ext := path.Ext(names[i])
			stem := strings.TrimSuffix(names[i], ext)
			names[i] = stem + "-" + sourceID(src) + ext
		}
		// identical sources still need distinct files
		for base, n := names[i], 2; used[names[i]]; n++ {
			ext := path.Ext(base)
			names[i] = strings.TrimSuffix(base, ext) + "-" + strconv.Itoa(n) + ext
		}
		used[names[i]] = true
	}

	return names
}

// sourceID is a short stable identifier of a source location.
func sourceID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()[:8]
}

// Save writes a result into dir under its derived name and returns the
// written path.
func Save(dir string, res *Result, format string, precision int) (string, error) {
	return SaveAs(dir, OutputName(res.Source, format), res, format, precision)
}

// SaveAs writes a result into dir under name and returns the written path.
func SaveAs(dir, name string, res *Result, format string, precision int) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	outPath := filepath.Join(dir, name)
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", outPath).Msg("Failed to close file")
		}
	}()

	if err := Write(f, res, format, precision); err != nil {
		return "", err
	}

	return outPath, nil
}
