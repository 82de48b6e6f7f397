package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/Simplici0/salon-margin/internal/ledger"
)

// EnrichedService is a fetched service with its cost override applied.
type EnrichedService struct {
	ServiceRecord
	ProductCost    decimal.Decimal
	LaunderingCost decimal.Decimal
}

// VariableCost is the per-procedure product plus laundering cost.
func (s EnrichedService) VariableCost() decimal.Decimal {
	return s.ProductCost.Add(s.LaunderingCost)
}

// Merge left-joins services with costs on id. Every service appears once, in
// fetch order; services without an override get zero costs and overrides
// without a service are ignored. The result is never nil.
func Merge(services []ServiceRecord, costs ledger.Table) []EnrichedService {
	out := make([]EnrichedService, 0, len(services))
	for _, svc := range services {
		row := EnrichedService{
			ServiceRecord:  svc,
			ProductCost:    decimal.Zero,
			LaunderingCost: decimal.Zero,
		}
		if o, ok := costs[svc.ID]; ok {
			row.ProductCost = o.ProductCost
			row.LaunderingCost = o.LaunderingCost
		}
		out = append(out, row)
	}
	return out
}

// Find returns the row with the given id.
func Find(rows []EnrichedService, id string) (EnrichedService, bool) {
	for _, r := range rows {
		if r.ID == id {
			return r, true
		}
	}
	return EnrichedService{}, false
}

// FindByName returns the first row whose name matches.
func FindByName(rows []EnrichedService, name string) (EnrichedService, bool) {
	for _, r := range rows {
		if r.Name == name {
			return r, true
		}
	}
	return EnrichedService{}, false
}
