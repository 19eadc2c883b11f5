package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignatzorin/freelance-payments/internal/gateway"
)

// ScriptedGateway возвращает заранее заданные ошибки по порядку, затем успех.
type ScriptedGateway struct {
	mu         sync.Mutex
	chargeErrs []error
	payoutErrs []error
	charges    []gateway.ChargeRequest
	payouts    []gateway.PayoutRequest
	seq        int

	// Block, если задан, заставляет Charge ждать отмены контекста.
	Block bool
}

var _ gateway.Gateway = (*ScriptedGateway)(nil)

func NewScriptedGateway() *ScriptedGateway {
	return &ScriptedGateway{}
}

func (g *ScriptedGateway) FailCharges(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chargeErrs = append(g.chargeErrs, errs...)
}

func (g *ScriptedGateway) FailPayouts(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payoutErrs = append(g.payoutErrs, errs...)
}

func (g *ScriptedGateway) Charges() []gateway.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.ChargeRequest(nil), g.charges...)
}

func (g *ScriptedGateway) Payouts() []gateway.PayoutRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.PayoutRequest(nil), g.payouts...)
}

func (g *ScriptedGateway) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.Receipt, error) {
	if g.Block {
		<-ctx.Done()
		return gateway.Receipt{}, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if len(g.chargeErrs) > 0 {
		err := g.chargeErrs[0]
		g.chargeErrs = g.chargeErrs[1:]
		return gateway.Receipt{}, err
	}
	return g.receipt("pay"), nil
}

func (g *ScriptedGateway) Payout(ctx context.Context, req gateway.PayoutRequest) (gateway.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payouts = append(g.payouts, req)
	if len(g.payoutErrs) > 0 {
		err := g.payoutErrs[0]
		g.payoutErrs = g.payoutErrs[1:]
		return gateway.Receipt{}, err
	}
	return g.receipt("po"), nil
}

func (g *ScriptedGateway) receipt(prefix string) gateway.Receipt {
	g.seq++
	return gateway.Receipt{
		Reference:   fmt.Sprintf("%s_test_%04d", prefix, g.seq),
		ProcessedAt: time.Now().UTC(),
	}
}
