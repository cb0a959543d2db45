// Package classifier maps entity names to industry sectors and organization
// types using ordered keyword tables.
package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel labels.
const (
	SectorOther    = "Other"
	OrgTypeUnknown = "Unknown"
	OrgTypePublic  = "Public Sector"
	OrgTypePrivate = "Private Sector"
)

// Category is one labelled keyword set. A name matches when its lower-cased
// form contains any keyword.
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Matches reports whether text (already lower-cased) contains a keyword.
func (c Category) Matches(lower string) bool {
	for _, kw := range c.Keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Table is an ordered list of categories; earlier entries win.
type Table []Category

// First returns the first category matching text.
func (t Table) First(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, c := range t {
		if c.Matches(lower) {
			return c.Name, true
		}
	}
	return "", false
}

// All returns every category matching text, in table order.
func (t Table) All(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, c := range t {
		if c.Matches(lower) {
			out = append(out, c.Name)
		}
	}
	return out
}

// DefaultSectors is the built-in sector table.
func DefaultSectors() Table {
	return Table{
		{Name: "Finance", Keywords: []string{"bank", "finance", "capital"}},
		{Name: "Healthcare", Keywords: []string{"hospital", "health", "medical"}},
		{Name: "Government", Keywords: []string{"gov", "city", "state", "ministry"}},
		{Name: "Education", Keywords: []string{"school", "university", "college"}},
		{Name: "Technology", Keywords: []string{"tech", "data", "cyber"}},
	}
}

// DefaultPublicSectors lists sectors classified as public sector.
func DefaultPublicSectors() []string {
	return []string{"Government", "Education"}
}

// Classifier resolves sector and organization type. It is safe for
// concurrent use.
type Classifier struct {
	sectors Table
	public  map[string]bool
}

// New creates a classifier from a sector table and the names of the public
// sectors.
func New(sectors Table, publicSectors []string) *Classifier {
	public := make(map[string]bool, len(publicSectors))
	for _, s := range publicSectors {
		public[s] = true
	}
	normalized := make(Table, len(sectors))
	for i, c := range sectors {
		kws := make([]string, len(c.Keywords))
		for j, kw := range c.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		normalized[i] = Category{Name: c.Name, Keywords: kws}
	}
	return &Classifier{sectors: normalized, public: public}
}

// Default returns a classifier using the built-in tables.
func Default() *Classifier {
	return New(DefaultSectors(), DefaultPublicSectors())
}

// ClassifySector returns the first matching sector for name, or "Other".
func (c *Classifier) ClassifySector(name string) string {
	if sector, ok := c.sectors.First(name); ok {
		return sector
	}
	return SectorOther
}

// ClassifyOrgType maps a sector to public or private sector.
func (c *Classifier) ClassifyOrgType(sector string) string {
	if c.public[sector] {
		return OrgTypePublic
	}
	return OrgTypePrivate
}

// Sectors returns the classifier's table.
func (c *Classifier) Sectors() Table {
	return c.sectors
}

// File is the on-disk form of a sector table.
type File struct {
	Sectors       Table    `yaml:"sectors"`
	PublicSectors []string `yaml:"public_sectors"`
}

// Load reads a classifier from a YAML file. A file without public_sectors
// uses the defaults.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector table: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sector table: %w", err)
	}
	if len(f.Sectors) == 0 {
		return nil, fmt.Errorf("sector table %s defines no sectors", path)
	}
	for i, c := range f.Sectors {
		if c.Name == "" {
			return nil, fmt.Errorf("sector table %s: entry %d has no name", path, i)
		}
	}
	if f.PublicSectors == nil {
		f.PublicSectors = DefaultPublicSectors()
	}
	return New(f.Sectors, f.PublicSectors), nil
}
