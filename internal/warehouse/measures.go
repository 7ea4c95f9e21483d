package warehouse

// Derive computes profit and ROI from revenue and budget. Profit needs both
// operands; ROI additionally needs a nonzero budget and is a percentage.
func Derive(revenue, budget *float64) (profit, roi *float64) {
	if revenue == nil || budget == nil {
		return nil, nil
	}
	p := *revenue - *budget
	profit = &p
	if *budget != 0 {
		r := p / *budget * 100
		roi = &r
	}
	return profit, roi
}
