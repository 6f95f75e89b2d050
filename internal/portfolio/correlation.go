package portfolio

import "equity-risk-engine/pkg/types"

// CorrelationEstimator estimates how correlated a candidate symbol is with
// the existing holdings. It sits behind an interface so the sector-proxy
// heuristic can be swapped for a measured price correlation without touching
// the checker's control flow.
type CorrelationEstimator interface {
	// Estimate returns the highest estimated correlation between symbol and
	// any existing holding, with the holding it came from.
	Estimate(symbol string, holdings []types.Position) (float64, string)
}

// SectorProxyEstimator approximates correlation from sector membership:
// same sector as a holding ~0.7, broad index ETF ~0.5, otherwise ~0.2.
// These are rough priors, not measured correlations, which is why the
// checker treats breaches as warnings.
type SectorProxyEstimator struct{}

const (
	corrSameSector = 0.7
	corrIndexETF   = 0.5
	corrBaseline   = 0.2
)

func (SectorProxyEstimator) Estimate(symbol string, holdings []types.Position) (float64, string) {
	if len(holdings) == 0 {
		return 0, ""
	}

	best := 0.0
	bestSymbol := ""
	sector := SectorOf(symbol)
	for _, pos := range holdings {
		if pos.Symbol == symbol {
			continue
		}
		est := corrBaseline
		if isIndexETF(symbol) || isIndexETF(pos.Symbol) {
			est = corrIndexETF
		}
		if sector != "" && sector == SectorOf(pos.Symbol) && sector != "Index" {
			est = corrSameSector
		}
		if est > best {
			best = est
			bestSymbol = pos.Symbol
		}
	}
	return best, bestSymbol
}
