package gateway

import (
	"go.uber.org/zap"

	"github.com/cashflow/pix-gateway/internal/core"
	"github.com/cashflow/pix-gateway/internal/port/output"
)

// NewAdapters builds one adapter per configured gateway
func NewAdapters(cfgs map[core.Gateway]Config, logger *zap.Logger) []output.GatewayAdapter {
	adapters := make([]output.GatewayAdapter, 0, len(cfgs))
	for _, g := range core.Gateways {
		cfg, ok := cfgs[g]
		if !ok {
			continue
		}
		switch g {
		case core.GatewayTryploPay:
			adapters = append(adapters, NewTryploPay(cfg, logger))
		case core.GatewaySuperPay:
			adapters = append(adapters, NewSuperPay(cfg, logger))
		case core.GatewaySuperPayBR:
			adapters = append(adapters, NewSuperPayBR(cfg, logger))
		}
	}
	return adapters
}
