package service

import (
	"context"

	"github.com/opencivic/muniva/internal/saasmetrics/domain"
)

// FixedCostModel returns one configured acquisition cost for every period.
// A computed CAC needs marketing-spend data the billing store does not
// hold, so the constant is the injected default rather than a hardcoded
// literal inside the calculator.
type FixedCostModel struct {
	Cost float64
}

func NewFixedCostModel(cost float64) domain.CostModel {
	return FixedCostModel{Cost: cost}
}

func (m FixedCostModel) AcquisitionCost(ctx context.Context, period domain.Period) (float64, error) {
	return m.Cost, nil
}
