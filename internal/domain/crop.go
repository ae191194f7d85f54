package domain

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// ErrUnknownCrop is returned when a crop name is not present in the catalog.
var ErrUnknownCrop = errors.New("unknown crop")

// CropProfile is the immutable reference data for one crop.
type CropProfile struct {
	Name              string  `yaml:"name" json:"name"`
	BaseYield         float64 `yaml:"base_yield" json:"base_yield"`                 // t/ha
	WaterNeed         float64 `yaml:"water_need" json:"water_need"`                 // mm/season
	FertilizerOptimum float64 `yaml:"fertilizer_optimum" json:"fertilizer_optimum"` // kg/ha
	DroughtResistant  bool    `yaml:"drought_resistant" json:"drought_resistant"`
}

// Catalog is a read-only mapping from crop name to profile. Iteration order
// follows the order the profiles were declared in.
type Catalog struct {
	profiles map[string]CropProfile
	order    []string
}

type catalogDocument struct {
	Crops []CropProfile `yaml:"crops"`
}

// LoadCatalog parses a YAML crop catalog and validates every profile.
func LoadCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse crop catalog: %w", err)
	}
	if len(doc.Crops) == 0 {
		return nil, errors.New("crop catalog is empty")
	}

	c := &Catalog{
		profiles: make(map[string]CropProfile, len(doc.Crops)),
		order:    make([]string, 0, len(doc.Crops)),
	}
	for i, p := range doc.Crops {
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("crop catalog entry %d: %w", i, err)
		}
		if _, dup := c.profiles[p.Name]; dup {
			return nil, fmt.Errorf("crop catalog entry %d: duplicate crop %q", i, p.Name)
		}
		c.profiles[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return c, nil
}

func validateProfile(p CropProfile) error {
	switch {
	case p.Name == "":
		return errors.New("name is required")
	case p.BaseYield <= 0:
		return fmt.Errorf("%s: base_yield must be positive", p.Name)
	case p.WaterNeed <= 0:
		return fmt.Errorf("%s: water_need must be positive", p.Name)
	case p.FertilizerOptimum <= 0:
		return fmt.Errorf("%s: fertilizer_optimum must be positive", p.Name)
	}
	return nil
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := LoadCatalog(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded crop catalog: %v", err))
	}
	return c
})

// DefaultCatalog returns the embedded crop catalog, parsed on first use.
func DefaultCatalog() *Catalog {
	return defaultCatalog()
}

// Lookup returns the profile for name, or an error wrapping ErrUnknownCrop.
func (c *Catalog) Lookup(name string) (CropProfile, error) {
	p, ok := c.profiles[name]
	if !ok {
		return CropProfile{}, fmt.Errorf("%w: %q", ErrUnknownCrop, name)
	}
	return p, nil
}

// Names returns the crop names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Profiles returns every profile in declaration order.
func (c *Catalog) Profiles() []CropProfile {
	out := make([]CropProfile, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.profiles[name])
	}
	return out
}

// Len reports how many crops the catalog holds.
func (c *Catalog) Len() int {
	return len(c.order)
}
