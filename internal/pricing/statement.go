package pricing

import "github.com/shopspring/decimal"

// Line is one row of the itemised statement.
type Line struct {
	Label          string
	Amount         decimal.Decimal
	PercentOfPrice decimal.Decimal
}

// Bar is one bar of the results chart.
type Bar struct {
	Category string
	Value    decimal.Decimal
	Loss     bool
}

// Lines returns the statement from revenue down to the net result. Rate-based
// deductions report their configured rate; the flat costs report their share
// of the price.
func (r Result) Lines() []Line {
	price := r.Inputs.Price
	return []Line{
		{Label: "Faturamento", Amount: price, PercentOfPrice: hundred},
		{Label: "(-) Comissão", Amount: r.Breakdown.Commission, PercentOfPrice: r.Inputs.CommissionPercent},
		{Label: "(-) Impostos", Amount: r.Breakdown.Tax, PercentOfPrice: r.Inputs.TaxPercent},
		{Label: "(-) Taxa Cartão", Amount: r.Breakdown.CardFee, PercentOfPrice: r.Inputs.CardFeePercent},
		{Label: "(-) Custo Prod. + Lavagem", Amount: r.Breakdown.ProductCost, PercentOfPrice: shareOf(r.Breakdown.ProductCost, price)},
		{Label: "(-) Custo Fixo (Global)", Amount: r.Breakdown.FixedOverhead, PercentOfPrice: shareOf(r.Breakdown.FixedOverhead, price)},
		{Label: "= Resultado", Amount: r.Totals.NetProfit, PercentOfPrice: r.Totals.MarginPercent},
	}
}

// Chart returns the bars of the deductions chart, net profit last.
func (r Result) Chart() []Bar {
	return []Bar{
		{Category: "Comissão", Value: r.Breakdown.Commission},
		{Category: "Impostos", Value: r.Breakdown.Tax},
		{Category: "Taxa Cartão", Value: r.Breakdown.CardFee},
		{Category: "Prod/Lavagem", Value: r.Breakdown.ProductCost},
		{Category: "Custo Fixo", Value: r.Breakdown.FixedOverhead},
		{Category: "Lucro Líquido", Value: r.Totals.NetProfit, Loss: r.Totals.NetProfit.IsNegative()},
	}
}
