package broker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"equity-risk-engine/internal/errors"
	"equity-risk-engine/pkg/types"
)

// GatewayConfig configures the REST order-gateway client.
type GatewayConfig struct {
	BaseURL    string        `json:"base_url"`
	APIKey     string        `json:"api_key"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
}

// GatewayBroker talks to the in-house order gateway over REST. Transient
// failures (timeouts, 5xx, rate limits) are retried with backoff; everything
// else surfaces as a categorized broker error.
type GatewayBroker struct {
	client *resty.Client
}

type orderRequest struct {
	AccountID  string  `json:"account_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   int     `json:"quantity"`
	OrderType  string  `json:"order_type"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

// NewGateway creates a gateway client.
func NewGateway(cfg GatewayConfig) *GatewayBroker {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(time.Minute).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError ||
				r.StatusCode() == http.StatusTooManyRequests
		})

	return &GatewayBroker{client: client}
}

func (b *GatewayBroker) GetAccountSummary(ctx context.Context, accountID string) (*types.AccountSummary, error) {
	var summary types.AccountSummary
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&summary).
		Get(fmt.Sprintf("/accounts/%s/summary", accountID))
	if err != nil {
		return nil, errors.Categorize(err, "gateway", "get_account_summary")
	}
	if resp.IsError() {
		return nil, errors.NewBrokerError("gateway", "get_account_summary",
			fmt.Errorf("gateway returned %d: %s", resp.StatusCode(), resp.String()))
	}
	return &summary, nil
}

func (b *GatewayBroker) GetPositions(ctx context.Context, accountID string) ([]types.Position, error) {
	var positions []types.Position
	resp, err := b.client.R().
		SetContext(ctx).
		SetResult(&positions).
		Get(fmt.Sprintf("/accounts/%s/positions", accountID))
	if err != nil {
		return nil, errors.Categorize(err, "gateway", "get_positions")
	}
	if resp.IsError() {
		return nil, errors.NewBrokerError("gateway", "get_positions",
			fmt.Errorf("gateway returned %d: %s", resp.StatusCode(), resp.String()))
	}
	return positions, nil
}

func (b *GatewayBroker) PlaceMarketOrder(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int) (*types.Order, error) {
	return b.placeOrder(ctx, orderRequest{
		AccountID: accountID,
		Symbol:    symbol,
		Side:      string(side),
		Quantity:  quantity,
		OrderType: string(types.OrderTypeMarket),
	})
}

func (b *GatewayBroker) PlaceLimitOrder(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int, limitPrice float64) (*types.Order, error) {
	return b.placeOrder(ctx, orderRequest{
		AccountID:  accountID,
		Symbol:     symbol,
		Side:       string(side),
		Quantity:   quantity,
		OrderType:  string(types.OrderTypeLimit),
		LimitPrice: limitPrice,
	})
}

func (b *GatewayBroker) placeOrder(ctx context.Context, req orderRequest) (*types.Order, error) {
	var order types.Order
	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&order).
		Post("/orders")
	if err != nil {
		return nil, errors.Categorize(err, "gateway", "place_order")
	}
	if resp.IsError() {
		perr := errors.NewOrderError("gateway", "place_order",
			fmt.Errorf("gateway returned %d: %s", resp.StatusCode(), resp.String()))
		if resp.StatusCode() >= http.StatusInternalServerError {
			return nil, errors.NewBrokerError("gateway", "place_order", perr)
		}
		return nil, perr
	}
	return &order, nil
}
