package broker

import (
	"context"

	"equity-risk-engine/pkg/types"
)

// Broker is the adapter the risk core talks to. Implementations must bound
// every call with the supplied context; a hung broker must surface as an
// error, never a stalled pipeline.
type Broker interface {
	GetAccountSummary(ctx context.Context, accountID string) (*types.AccountSummary, error)
	GetPositions(ctx context.Context, accountID string) ([]types.Position, error)
	PlaceMarketOrder(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int) (*types.Order, error)
	PlaceLimitOrder(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int, limitPrice float64) (*types.Order, error)
}
