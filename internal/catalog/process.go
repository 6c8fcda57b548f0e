package catalog

import "math"

// Part is one line of a process: an amount of exactly one product or want
// per iteration.
type Part struct {
	Product ProductID `yaml:"product,omitempty" json:"product,omitempty"`
	Want    WantID    `yaml:"want,omitempty" json:"want,omitempty"`
	Amount  float64   `yaml:"amount" json:"amount"`
}

// Process transforms inputs into outputs. Inputs are destroyed, capital is
// needed for the run but survives it.
type Process struct {
	ID      ProcessID `yaml:"id" json:"id"`
	Name    string    `yaml:"name" json:"name"`
	Inputs  []Part    `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Capital []Part    `yaml:"capital,omitempty" json:"capital,omitempty"`
	Outputs []Part    `yaml:"outputs" json:"outputs"`
}

// RunResult is what a run of a process did. Deltas are signed; ProductUsed
// holds capital quantity that was tied up but not destroyed.
type RunResult struct {
	Completed    float64
	ProductDelta map[ProductID]float64
	ProductUsed  map[ProductID]float64
	WantDelta    map[WantID]float64
}

// Run computes how many of the requested iterations can complete against the
// given stock and what they would change. It never modifies its arguments;
// callers apply the deltas themselves. Fractional iterations are allowed.
func (p *Process) Run(iterations float64, products map[ProductID]float64, wants map[WantID]float64) RunResult {
	completed := p.MaxIterations(products, wants)
	if iterations < completed {
		completed = iterations
	}
	if completed < 0 {
		completed = 0
	}

	res := RunResult{
		Completed:    completed,
		ProductDelta: make(map[ProductID]float64),
		ProductUsed:  make(map[ProductID]float64),
		WantDelta:    make(map[WantID]float64),
	}
	if completed == 0 {
		return res
	}
	for _, in := range p.Inputs {
		if in.Product != "" {
			res.ProductDelta[in.Product] -= in.Amount * completed
		} else {
			res.WantDelta[in.Want] -= in.Amount * completed
		}
	}
	for _, cp := range p.Capital {
		res.ProductUsed[cp.Product] += cp.Amount * completed
	}
	for _, out := range p.Outputs {
		if out.Product != "" {
			res.ProductDelta[out.Product] += out.Amount * completed
		} else {
			res.WantDelta[out.Want] += out.Amount * completed
		}
	}
	return res
}

// MaxIterations is the largest iteration count the stock can support.
// A process with no inputs and no capital is unbounded.
func (p *Process) MaxIterations(products map[ProductID]float64, wants map[WantID]float64) float64 {
	limit := math.Inf(1)
	for _, in := range p.Inputs {
		var have float64
		if in.Product != "" {
			have = products[in.Product]
		} else {
			have = wants[in.Want]
		}
		limit = math.Min(limit, have/in.Amount)
	}
	for _, cp := range p.Capital {
		limit = math.Min(limit, products[cp.Product]/cp.Amount)
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// InputAmount is the per-iteration quantity of product consumed, or 0.
func (p *Process) InputAmount(id ProductID) float64 {
	var total float64
	for _, in := range p.Inputs {
		if in.Product == id {
			total += in.Amount
		}
	}
	return total
}

// CapitalAmount is the per-iteration quantity of product used, or 0.
func (p *Process) CapitalAmount(id ProductID) float64 {
	var total float64
	for _, cp := range p.Capital {
		if cp.Product == id {
			total += cp.Amount
		}
	}
	return total
}

// WantOutput is the per-iteration quantity of want produced, or 0.
func (p *Process) WantOutput(id WantID) float64 {
	var total float64
	for _, out := range p.Outputs {
		if out.Want == id {
			total += out.Amount
		}
	}
	return total
}

// OutputWants lists the distinct wants the process produces.
func (p *Process) OutputWants() []WantID {
	var ids []WantID
	seen := make(map[WantID]bool)
	for _, out := range p.Outputs {
		if out.Want != "" && !seen[out.Want] {
			seen[out.Want] = true
			ids = append(ids, out.Want)
		}
	}
	return ids
}
