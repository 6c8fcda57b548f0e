// Package config loads the simulation config: where the catalog and the
// database live, how cycles run, and which pops exist with what desires.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-economy/internal/agents"
	"github.com/talgya/mini-economy/internal/catalog"
)

type Config struct {
	Seed            int64         `yaml:"seed"`
	Cycles          uint64        `yaml:"cycles"` // 0 runs until interrupted
	CycleInterval   time.Duration `yaml:"cycle_interval"`
	CyclesPerSeason uint64        `yaml:"cycles_per_season"`
	Parallelism     int           `yaml:"parallelism"`
	SupplySpread    float64       `yaml:"supply_spread"`

	Catalog     string `yaml:"catalog"`
	Database    string `yaml:"database"` // empty disables persistence
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	Definitions []agents.Definition `yaml:"definitions"`
	Pops        []PopSpec           `yaml:"pops"`
}

type PopSpec struct {
	ID          uint64                        `yaml:"id"`
	Name        string                        `yaml:"name"`
	Size        float64                       `yaml:"size"`
	Definitions []string                      `yaml:"definitions"`
	Property    map[catalog.ProductID]float64 `yaml:"property,omitempty"`
	Unclaimed   map[catalog.WantID]float64    `yaml:"unclaimed,omitempty"`
}

// Load reads a config file. Relative catalog and database paths are taken
// from the file's directory.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, cfg.Validate()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Defaults returns the config used for fields a file leaves out.
func Defaults() Config {
	return Config{
		Seed:            1,
		CyclesPerSeason: 12,
		SupplySpread:    0.5,
		Catalog:         "catalog.yaml",
		Database:        "econsim.db",
	}
}

func (c *Config) resolvePaths(dir string) {
	if c.Catalog != "" && !filepath.IsAbs(c.Catalog) {
		c.Catalog = filepath.Join(dir, c.Catalog)
	}
	if c.Database != "" && !filepath.IsAbs(c.Database) {
		c.Database = filepath.Join(dir, c.Database)
	}
}

// Normalize fills derived defaults and trims names.
func (c *Config) Normalize() {
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	if c.CycleInterval < 0 {
		c.CycleInterval = 0
	}
	if c.SupplySpread < 0 {
		c.SupplySpread = 0
	}
	for i := range c.Definitions {
		c.Definitions[i].Name = strings.TrimSpace(c.Definitions[i].Name)
	}
	for i := range c.Pops {
		p := &c.Pops[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			p.Name = fmt.Sprintf("pop-%d", p.ID)
		}
		for j := range p.Definitions {
			p.Definitions[j] = strings.TrimSpace(p.Definitions[j])
		}
	}
}

// Validate checks cross-references inside the config. Catalog references
// are checked when pops are built.
func (c Config) Validate() error {
	if c.SupplySpread > 1 {
		return fmt.Errorf("supply_spread %v must be within 0..1", c.SupplySpread)
	}
	defs := make(map[string]bool, len(c.Definitions))
	for i, d := range c.Definitions {
		if d.Name == "" {
			return fmt.Errorf("definitions[%d]: missing name", i)
		}
		if defs[d.Name] {
			return fmt.Errorf("definitions[%d]: duplicate name %q", i, d.Name)
		}
		defs[d.Name] = true
	}

	ids := make(map[uint64]bool, len(c.Pops))
	for i, p := range c.Pops {
		if p.ID == 0 {
			return fmt.Errorf("pops[%d]: id must be positive", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("pops[%d]: duplicate id %d", i, p.ID)
		}
		ids[p.ID] = true
		if p.Size <= 0 {
			return fmt.Errorf("pops[%d] %s: size must be positive", i, p.Name)
		}
		for _, name := range p.Definitions {
			if !defs[name] {
				return fmt.Errorf("pops[%d] %s: unknown definition %q", i, p.Name, name)
			}
		}
		for id, q := range p.Property {
			if q < 0 {
				return fmt.Errorf("pops[%d] %s: negative property %s", i, p.Name, id)
			}
		}
	}
	return nil
}

// BuildPops creates the configured pops against a catalog: desires from
// their definitions, starting property and unclaimed wants.
func (c Config) BuildPops(cat *catalog.Catalog) ([]*agents.Pop, error) {
	defs := make(map[string]agents.Definition, len(c.Definitions))
	for _, d := range c.Definitions {
		defs[d.Name] = d
	}

	pops := make([]*agents.Pop, 0, len(c.Pops))
	for _, spec := range c.Pops {
		pop := agents.NewPop(agents.PopID(spec.ID), spec.Name, spec.Size, cat)
		for _, name := range spec.Definitions {
			if err := pop.Instantiate(defs[name]); err != nil {
				return nil, err
			}
		}
		for id, q := range spec.Property {
			if _, ok := cat.Product(id); !ok {
				return nil, fmt.Errorf("pop %s property %s: %w", spec.Name, id, catalog.ErrUnknownProduct)
			}
			pop.Property.AddQuantity(id, q)
		}
		for id, q := range spec.Unclaimed {
			if _, ok := cat.Want(id); !ok {
				return nil, fmt.Errorf("pop %s unclaimed %s: %w", spec.Name, id, catalog.ErrUnknownWant)
			}
			pop.Desires.UnclaimedWants[id] = q
		}
		pops = append(pops, pop)
	}
	return pops, nil
}
