package saasmetrics

import (
	"context"

	"github.com/opencivic/muniva/internal/config"
	"github.com/opencivic/muniva/internal/saasmetrics/domain"
	"github.com/opencivic/muniva/internal/saasmetrics/repository"
	"github.com/opencivic/muniva/internal/saasmetrics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("saasmetrics.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideCostModel),
	fx.Provide(service.New),
)

// tunableCostModel reads the acquisition cost from the engine config
// holder on every call, so a hot reload takes effect on the next
// computation.
type tunableCostModel struct {
	holder *config.EngineConfigHolder
}

func (m tunableCostModel) AcquisitionCost(ctx context.Context, period domain.Period) (float64, error) {
	return m.holder.Get().AcquisitionCost, nil
}

func provideCostModel(holder *config.EngineConfigHolder) domain.CostModel {
	return tunableCostModel{holder: holder}
}
