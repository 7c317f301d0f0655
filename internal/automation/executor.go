package automation

import "context"

// GeneratedOrder is one order produced by an automation run.
type GeneratedOrder struct {
	CustomerID uint64
	OrderID    string
	Total      int64
}

// Outcome summarizes one successful automation run.
type Outcome struct {
	Orders       []GeneratedOrder
	TotalRevenue int64
}

func (o *Outcome) OrdersGenerated() int { return len(o.Orders) }

// CustomersAffected returns the distinct customers touched by the run.
func (o *Outcome) CustomersAffected() []uint64 {
	seen := map[uint64]struct{}{}
	var out []uint64
	for _, ord := range o.Orders {
		if _, ok := seen[ord.CustomerID]; ok {
			continue
		}
		seen[ord.CustomerID] = struct{}{}
		out = append(out, ord.CustomerID)
	}
	return out
}

// Executor runs a job's external side effect. Which products are picked and
// how orders are assembled is the implementation's business; the coordinator
// only sees the outcome or the error.
type Executor interface {
	Execute(ctx context.Context, job *Job) (*Outcome, error)
}
