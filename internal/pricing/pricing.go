package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Inputs represents the values of a single procedure simulation.
// Rates are percentages (30 means 30%).
type Inputs struct {
	Price             decimal.Decimal
	CommissionPercent decimal.Decimal
	TaxPercent        decimal.Decimal
	CardFeePercent    decimal.Decimal
	ProductCost       decimal.Decimal // product + laundering
	FixedOverhead     decimal.Decimal
}

// Breakdown contains the line-item deductions of the simulation.
type Breakdown struct {
	Commission    decimal.Decimal
	Tax           decimal.Decimal
	CardFee       decimal.Decimal
	ProductCost   decimal.Decimal
	FixedOverhead decimal.Decimal
}

// Totals contains roll-up values from the simulation.
type Totals struct {
	VariableCosts decimal.Decimal
	GrossProfit   decimal.Decimal
	NetProfit     decimal.Decimal
	MarginPercent decimal.Decimal
}

// Result groups the full simulation output.
type Result struct {
	Inputs    Inputs
	Breakdown Breakdown
	Totals    Totals
}

// Calculate computes the profitability of one procedure. No rounding is
// applied and out-of-range inputs are computed as given.
func Calculate(in Inputs) Result {
	commission := in.Price.Mul(in.CommissionPercent).Div(hundred)
	tax := in.Price.Mul(in.TaxPercent).Div(hundred)
	cardFee := in.Price.Mul(in.CardFeePercent).Div(hundred)

	variable := commission.Add(tax).Add(cardFee).Add(in.ProductCost)
	gross := in.Price.Sub(variable)
	net := gross.Sub(in.FixedOverhead)

	return Result{
		Inputs: in,
		Breakdown: Breakdown{
			Commission:    commission,
			Tax:           tax,
			CardFee:       cardFee,
			ProductCost:   in.ProductCost,
			FixedOverhead: in.FixedOverhead,
		},
		Totals: Totals{
			VariableCosts: variable,
			GrossProfit:   gross,
			NetProfit:     net,
			MarginPercent: shareOf(net, in.Price),
		},
	}
}

// shareOf returns amount as a percentage of price, or zero when price is not
// positive.
func shareOf(amount, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(hundred).Div(price)
}
