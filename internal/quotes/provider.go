package quotes

import (
	"fmt"
	"sync"

	"github.com/piquette/finance-go/quote"
)

// Provider resolves a last-traded price for a symbol. The paper broker and
// the risk checker use it to mark positions.
type Provider interface {
	Price(symbol string) (float64, error)
}

// YahooProvider fetches live quotes.
type YahooProvider struct{}

func NewYahoo() *YahooProvider {
	return &YahooProvider{}
}

func (p *YahooProvider) Price(symbol string) (float64, error) {
	q, err := quote.Get(symbol)
	if err != nil {
		return 0, fmt.Errorf("quote lookup for %s failed: %w", symbol, err)
	}
	if q == nil || q.RegularMarketPrice <= 0 {
		return 0, fmt.Errorf("no market price for %s", symbol)
	}
	return q.RegularMarketPrice, nil
}

// StaticProvider serves prices from a fixed map, for tests and simulations.
type StaticProvider struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStatic(prices map[string]float64) *StaticProvider {
	if prices == nil {
		prices = make(map[string]float64)
	}
	return &StaticProvider{prices: prices}
}

func (p *StaticProvider) Price(symbol string) (float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	price, ok := p.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

// Set updates or adds a price.
func (p *StaticProvider) Set(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}
