package detect

import (
	"context"
	"time"

	"github.com/isbattery/isbattery/pkg/provider"
)

// DetailedQueryResult is the outcome of a single, diagnostic tier-1 run.
type DetailedQueryResult struct {
	Block *provider.DetailedBlock `json:"block,omitempty"`
	// Watts is set when the tier would have been accepted.
	Watts     *float64 `json:"watts,omitempty"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"errorKind,omitempty"`
	Duration  string   `json:"duration"`
}

// Accepted reports whether the detailed query produced a usable value.
func (r DetailedQueryResult) Accepted() bool {
	return r.Watts != nil
}

// TestDetailedQuery runs the detailed query once and reports the raw block,
// the derived wattage and why it would be discarded.
func (c *Cascade) TestDetailedQuery(ctx context.Context) DetailedQueryResult {
	start := time.Now()

	var r DetailedQueryResult
	p := &poll{}
	watts, err := detailedTier{c}.estimate(ctx, p)
	r.Duration = time.Since(start).String()
	r.Block = p.block
	if err != nil {
		r.Error = err.Error()
		r.ErrorKind = provider.Kind(err)
		return r
	}
	r.Watts = &watts
	return r
}
