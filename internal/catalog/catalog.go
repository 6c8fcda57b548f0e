// Package catalog holds the read-only definitions the allocation engine works
// against: products (concrete goods), wants (abstract effects) and the
// processes that turn one into the other.
//
// A Catalog is built once with New and never mutated afterwards, so it can be
// shared by every pop running an allocation cycle in parallel.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInconsistent marks a malformed definition: a process that does not take
// the product it is attached to, a reference to an unknown id, and so on.
// It is a data-integrity failure, never a runtime allocation condition.
var ErrInconsistent = errors.New("catalog inconsistent")

// ErrUnknownProduct and ErrUnknownWant are returned by lookups that must succeed.
var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownWant    = errors.New("unknown want")
)

// ProductID identifies a concrete, countable good.
type ProductID string

// WantID identifies an abstract effect (warmth, rest, status) that products
// produce by being owned, used or consumed.
type WantID string

// ProcessID identifies a process definition.
type ProcessID string

// Product category names used by the supply generator's seasonal modifiers.
const (
	CategoryFood     = "food"
	CategoryFuel     = "fuel"
	CategoryClothing = "clothing"
	CategoryTool     = "tool"
	CategoryShelter  = "shelter"
	CategoryLuxury   = "luxury"
	CategoryMaterial = "material"
)

// Product is a concrete good.
type Product struct {
	ID       ProductID `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Unit     string    `yaml:"unit,omitempty" json:"unit,omitempty"`
	Category string    `yaml:"category,omitempty" json:"category,omitempty"`

	// Wants produced per unit simply by owning the product.
	Wants map[WantID]float64 `yaml:"wants,omitempty" json:"wants,omitempty"`

	// UseProcess takes the product as capital and gives it back.
	UseProcess ProcessID `yaml:"use_process,omitempty" json:"use_process,omitempty"`
	// ConsumptionProcess destroys the product as an input.
	ConsumptionProcess ProcessID `yaml:"consumption_process,omitempty" json:"consumption_process,omitempty"`

	// BaseSupply is the quantity a pop receives per cycle before seasonal
	// and noise modifiers. Zero means the product is never supplied.
	BaseSupply float64 `yaml:"base_supply,omitempty" json:"base_supply,omitempty"`
}

// Want is an abstract effect. The source sets are derived by New from the
// product and process definitions; they are not read from files.
type Want struct {
	ID   WantID `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	OwnershipSources   []ProductID `yaml:"-" json:"-"`
	UseSources         []ProductID `yaml:"-" json:"-"`
	ConsumptionSources []ProductID `yaml:"-" json:"-"`
}

// Catalog is the read-only lookup of products, wants and processes.
type Catalog struct {
	products  map[ProductID]*Product
	wants     map[WantID]*Want
	processes map[ProcessID]*Process

	productOrder []ProductID
	wantOrder    []WantID

	// Digest is the sha256 of the source file when loaded from disk.
	Digest string
}

// New validates the definitions, cross-links want sources and returns a
// Catalog. Any dangling reference or process that does not take the product
// it is attached to fails with ErrInconsistent.
func New(products []Product, wants []Want, processes []Process) (*Catalog, error) {
	c := &Catalog{
		products:  make(map[ProductID]*Product, len(products)),
		wants:     make(map[WantID]*Want, len(wants)),
		processes: make(map[ProcessID]*Process, len(processes)),
	}

	for i := range wants {
		w := wants[i]
		if w.ID == "" {
			return nil, fmt.Errorf("want %d: empty id: %w", i, ErrInconsistent)
		}
		if _, dup := c.wants[w.ID]; dup {
			return nil, fmt.Errorf("want %s: duplicate id: %w", w.ID, ErrInconsistent)
		}
		w.OwnershipSources, w.UseSources, w.ConsumptionSources = nil, nil, nil
		c.wants[w.ID] = &w
		c.wantOrder = append(c.wantOrder, w.ID)
	}
	for i := range products {
		p := products[i]
		if p.ID == "" {
			return nil, fmt.Errorf("product %d: empty id: %w", i, ErrInconsistent)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("product %s: duplicate id: %w", p.ID, ErrInconsistent)
		}
		c.products[p.ID] = &p
		c.productOrder = append(c.productOrder, p.ID)
	}
	for i := range processes {
		pr := processes[i]
		if pr.ID == "" {
			return nil, fmt.Errorf("process %d: empty id: %w", i, ErrInconsistent)
		}
		if _, dup := c.processes[pr.ID]; dup {
			return nil, fmt.Errorf("process %s: duplicate id: %w", pr.ID, ErrInconsistent)
		}
		c.processes[pr.ID] = &pr
	}

	for _, pr := range c.processes {
		if err := c.checkProcess(pr); err != nil {
			return nil, err
		}
	}
	if err := c.checkProductCycles(); err != nil {
		return nil, err
	}

	sort.Slice(c.productOrder, func(i, j int) bool { return c.productOrder[i] < c.productOrder[j] })
	sort.Slice(c.wantOrder, func(i, j int) bool { return c.wantOrder[i] < c.wantOrder[j] })

	for _, pid := range c.productOrder {
		p := c.products[pid]
		for wid, qty := range p.Wants {
			w, ok := c.wants[wid]
			if !ok {
				return nil, fmt.Errorf("product %s: wants %s: %w", pid, wid, ErrInconsistent)
			}
			if qty <= 0 {
				return nil, fmt.Errorf("product %s: want %s yield %v must be positive: %w", pid, wid, qty, ErrInconsistent)
			}
			w.OwnershipSources = append(w.OwnershipSources, pid)
		}
		if p.UseProcess != "" {
			pr, ok := c.processes[p.UseProcess]
			if !ok {
				return nil, fmt.Errorf("product %s: use process %s: %w", pid, p.UseProcess, ErrInconsistent)
			}
			if pr.CapitalAmount(pid) <= 0 {
				return nil, fmt.Errorf("product %s: use process %s does not take it as capital: %w", pid, pr.ID, ErrInconsistent)
			}
			for _, wid := range pr.OutputWants() {
				c.wants[wid].UseSources = append(c.wants[wid].UseSources, pid)
			}
		}
		if p.ConsumptionProcess != "" {
			pr, ok := c.processes[p.ConsumptionProcess]
			if !ok {
				return nil, fmt.Errorf("product %s: consumption process %s: %w", pid, p.ConsumptionProcess, ErrInconsistent)
			}
			if pr.InputAmount(pid) <= 0 {
				return nil, fmt.Errorf("product %s: consumption process %s does not consume it: %w", pid, pr.ID, ErrInconsistent)
			}
			for _, wid := range pr.OutputWants() {
				c.wants[wid].ConsumptionSources = append(c.wants[wid].ConsumptionSources, pid)
			}
		}
	}

	return c, nil
}

func (c *Catalog) checkProcess(pr *Process) error {
	if len(pr.Outputs) == 0 {
		return fmt.Errorf("process %s: no outputs: %w", pr.ID, ErrInconsistent)
	}
	check := func(kind string, parts []Part, wantsAllowed bool) error {
		for _, part := range parts {
			if part.Amount <= 0 {
				return fmt.Errorf("process %s: %s amount %v must be positive: %w", pr.ID, kind, part.Amount, ErrInconsistent)
			}
			switch {
			case part.Product != "" && part.Want != "":
				return fmt.Errorf("process %s: %s names both product and want: %w", pr.ID, kind, ErrInconsistent)
			case part.Product != "":
				if _, ok := c.products[part.Product]; !ok {
					return fmt.Errorf("process %s: %s product %s: %w", pr.ID, kind, part.Product, ErrInconsistent)
				}
			case part.Want != "":
				if !wantsAllowed {
					return fmt.Errorf("process %s: %s cannot be a want: %w", pr.ID, kind, ErrInconsistent)
				}
				if _, ok := c.wants[part.Want]; !ok {
					return fmt.Errorf("process %s: %s want %s: %w", pr.ID, kind, part.Want, ErrInconsistent)
				}
			default:
				return fmt.Errorf("process %s: %s names neither product nor want: %w", pr.ID, kind, ErrInconsistent)
			}
		}
		return nil
	}
	if err := check("input", pr.Inputs, true); err != nil {
		return err
	}
	if err := check("capital", pr.Capital, false); err != nil {
		return err
	}
	if err := check("output", pr.Outputs, true); err != nil {
		return err
	}
	for _, cp := range pr.Capital {
		if pr.InputAmount(cp.Product) > 0 {
			return fmt.Errorf("process %s: %s is both input and capital: %w", pr.ID, cp.Product, ErrInconsistent)
		}
	}
	for _, out := range pr.Outputs {
		if out.Product == "" {
			continue
		}
		if pr.InputAmount(out.Product) > 0 || pr.CapitalAmount(out.Product) > 0 {
			return fmt.Errorf("process %s: outputs its own input %s: %w", pr.ID, out.Product, ErrInconsistent)
		}
	}
	return nil
}

// checkProductCycles rejects processes that, chained together, turn a
// product back into itself. Each process edge runs from every input and
// capital product to every output product.
func (c *Catalog) checkProductCycles() error {
	edges := make(map[ProductID][]ProductID)
	for _, pr := range c.processes {
		for _, out := range pr.Outputs {
			if out.Product == "" {
				continue
			}
			for _, parts := range [][]Part{pr.Inputs, pr.Capital} {
				for _, in := range parts {
					if in.Product != "" {
						edges[in.Product] = append(edges[in.Product], out.Product)
					}
				}
			}
		}
	}

	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[ProductID]int, len(c.products))
	var visit func(id ProductID) error
	visit = func(id ProductID) error {
		state[id] = onPath
		for _, next := range edges[id] {
			switch state[next] {
			case onPath:
				return fmt.Errorf("product %s: processes turn %s back into itself: %w", id, next, ErrInconsistent)
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}
		state[id] = done
		return nil
	}
	for _, id := range c.productOrder {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Product returns the product definition.
func (c *Catalog) Product(id ProductID) (*Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Want returns the want definition including its derived source sets.
func (c *Catalog) Want(id WantID) (*Want, bool) {
	w, ok := c.wants[id]
	return w, ok
}

// Process returns the process definition.
func (c *Catalog) Process(id ProcessID) (*Process, bool) {
	p, ok := c.processes[id]
	return p, ok
}

// ProductIDs returns every product id in sorted order.
func (c *Catalog) ProductIDs() []ProductID {
	return append([]ProductID(nil), c.productOrder...)
}

// WantIDs returns every want id in sorted order.
func (c *Catalog) WantIDs() []WantID {
	return append([]WantID(nil), c.wantOrder...)
}
