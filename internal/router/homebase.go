package router

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/telhawk-intel/internal/model"
)

// UnknownBase is the home-base key used for unlisted gangs.
const UnknownBase = "unknown"

// HomeBases maps lower-cased gang names to their assumed operating base.
type HomeBases map[string]model.Coordinate

// DefaultHomeBases returns the built-in table.
func DefaultHomeBases() HomeBases {
	return HomeBases{
		"lockbit3":  {Lat: 55.7558, Lon: 37.6173},
		"qilin":     {Lat: 59.9343, Lon: 30.3351},
		"8base":     {Lat: 13.7563, Lon: 100.5018},
		"play":      {Lat: -23.5505, Lon: -46.6333},
		UnknownBase: {Lat: 0, Lon: 0},
	}
}

// Lookup returns the base for gang, falling back to the "unknown" entry.
func (h HomeBases) Lookup(gang string) model.Coordinate {
	if c, ok := h[strings.ToLower(gang)]; ok {
		return c
	}
	return h[UnknownBase]
}

// LoadHomeBases reads a YAML mapping of gang name to {lat, lon}. Keys are
// lower-cased on load.
func LoadHomeBases(path string) (HomeBases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read home bases: %w", err)
	}

	var raw map[string]model.Coordinate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse home bases: %w", err)
	}

	bases := make(HomeBases, len(raw)+1)
	for k, v := range raw {
		bases[strings.ToLower(k)] = v
	}
	if _, ok := bases[UnknownBase]; !ok {
		bases[UnknownBase] = model.Coordinate{}
	}
	return bases, nil
}
