package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"equity-risk-engine/internal/quotes"
	"equity-risk-engine/pkg/types"
)

// paperAccount is the simulated state for one account.
type paperAccount struct {
	balance      float64
	startBalance float64
	positions    map[string]*types.Position
}

// PaperBroker simulates immediate fills against a quote provider. It exists
// for dry runs, tests and the operator CLI.
type PaperBroker struct {
	mu       sync.Mutex
	quotes   quotes.Provider
	accounts map[string]*paperAccount
}

// NewPaper creates a paper broker backed by the given quote provider.
func NewPaper(q quotes.Provider) *PaperBroker {
	return &PaperBroker{
		quotes:   q,
		accounts: make(map[string]*paperAccount),
	}
}

// Fund seeds an account with a starting cash balance.
func (b *PaperBroker) Fund(accountID string, balance float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[accountID] = &paperAccount{
		balance:      balance,
		startBalance: balance,
		positions:    make(map[string]*types.Position),
	}
}

// SetPosition installs a position directly, for scenario setup.
func (b *PaperBroker) SetPosition(accountID string, pos types.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[accountID]
	if acct == nil {
		acct = &paperAccount{positions: make(map[string]*types.Position)}
		b.accounts[accountID] = acct
	}
	p := pos
	acct.positions[pos.Symbol] = &p
}

func (b *PaperBroker) account(accountID string) (*paperAccount, error) {
	acct := b.accounts[accountID]
	if acct == nil {
		return nil, fmt.Errorf("unknown account %s", accountID)
	}
	return acct, nil
}

func (b *PaperBroker) GetAccountSummary(_ context.Context, accountID string) (*types.AccountSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.account(accountID)
	if err != nil {
		return nil, err
	}

	equity := acct.balance
	for _, pos := range acct.positions {
		if price, err := b.quotes.Price(pos.Symbol); err == nil {
			pos.MarketPrice = price
		}
		equity += pos.MarketValue()
	}

	return &types.AccountSummary{
		AccountID: accountID,
		Balance:   acct.balance,
		Equity:    equity,
		DailyPnL:  equity - acct.startBalance,
	}, nil
}

func (b *PaperBroker) GetPositions(_ context.Context, accountID string) ([]types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.account(accountID)
	if err != nil {
		return nil, err
	}

	out := make([]types.Position, 0, len(acct.positions))
	for _, pos := range acct.positions {
		if price, err := b.quotes.Price(pos.Symbol); err == nil {
			pos.MarketPrice = price
		}
		out = append(out, *pos)
	}
	return out, nil
}

func (b *PaperBroker) PlaceMarketOrder(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int) (*types.Order, error) {
	price, err := b.quotes.Price(symbol)
	if err != nil {
		return nil, fmt.Errorf("cannot price market order: %w", err)
	}
	return b.fill(accountID, symbol, side, quantity, price)
}

func (b *PaperBroker) PlaceLimitOrder(ctx context.Context, accountID, symbol string, side types.SignalType, quantity int, limitPrice float64) (*types.Order, error) {
	// The simulation fills marketable limits at the limit price and rejects
	// the rest, which is enough for pipeline testing.
	price, err := b.quotes.Price(symbol)
	if err != nil {
		return nil, fmt.Errorf("cannot price limit order: %w", err)
	}
	marketable := (side == types.SignalBuy && limitPrice >= price) ||
		(side == types.SignalSell && limitPrice <= price)
	if !marketable {
		return &types.Order{
			ID:          ulid.Make().String(),
			Symbol:      symbol,
			Side:        side,
			Quantity:    quantity,
			Status:      types.OrderStatusRejected,
			SubmittedAt: time.Now(),
		}, nil
	}
	return b.fill(accountID, symbol, side, quantity, limitPrice)
}

func (b *PaperBroker) fill(accountID, symbol string, side types.SignalType, quantity int, price float64) (*types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.account(accountID)
	if err != nil {
		return nil, err
	}

	notional := float64(quantity) * price
	switch side {
	case types.SignalBuy:
		if notional > acct.balance {
			return nil, fmt.Errorf("order rejected: insufficient funds ($%.2f needed, $%.2f available)",
				notional, acct.balance)
		}
		acct.balance -= notional
		pos := acct.positions[symbol]
		if pos == nil {
			acct.positions[symbol] = &types.Position{
				Symbol:      symbol,
				Quantity:    float64(quantity),
				AvgPrice:    price,
				MarketPrice: price,
			}
		} else {
			total := pos.Quantity + float64(quantity)
			pos.AvgPrice = (pos.AvgPrice*pos.Quantity + notional) / total
			pos.Quantity = total
			pos.MarketPrice = price
		}
	case types.SignalSell:
		pos := acct.positions[symbol]
		if pos == nil || pos.Quantity < float64(quantity) {
			return nil, fmt.Errorf("order rejected: insufficient position in %s", symbol)
		}
		acct.balance += notional
		pos.Quantity -= float64(quantity)
		if pos.Quantity == 0 {
			delete(acct.positions, symbol)
		}
	default:
		return nil, fmt.Errorf("unsupported order side %s", side)
	}

	return &types.Order{
		ID:          ulid.Make().String(),
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		FillPrice:   price,
		Status:      types.OrderStatusFilled,
		SubmittedAt: time.Now(),
	}, nil
}
