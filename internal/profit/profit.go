package profit

import "math"

// Config holds the profit-taking ladder: trigger percentages for three
// levels and partial-exit fractions for levels 1-2. Level 3 always exits the
// full remaining quantity.
type Config struct {
	LevelPercents [3]float64 `json:"level_percents"`
	ExitFractions [2]float64 `json:"exit_fractions"`
}

// DefaultConfig returns the 5/10/20% ladder with 25%/50% partial exits.
func DefaultConfig() Config {
	return Config{
		LevelPercents: [3]float64{0.05, 0.10, 0.20},
		ExitFractions: [2]float64{0.25, 0.50},
	}
}

// ExitPlan is the per-position state: three target prices and which levels
// have fired. LevelsHit only grows; a level fires at most once.
type ExitPlan struct {
	EntryPrice   float64      `json:"entry_price"`
	TargetPrices [3]float64   `json:"target_prices"`
	Fractions    [3]float64   `json:"fractions"`
	LevelsHit    map[int]bool `json:"levels_hit"`
}

// ExitDecision is the outcome of a live-price evaluation.
type ExitDecision struct {
	ShouldExit   bool    `json:"should_exit"`
	Level        int     `json:"level,omitempty"` // 1-based
	TargetPrice  float64 `json:"target_price,omitempty"`
	ExitQuantity int     `json:"exit_quantity"`
	Remaining    int     `json:"remaining"`
}

// Manager builds exit plans and evaluates them against live prices. It is
// stateless; all per-position state lives in the ExitPlan.
type Manager struct {
	cfg Config
}

// NewManager creates a profit-taking manager.
func NewManager(cfg Config) *Manager {
	if cfg.LevelPercents == [3]float64{} {
		cfg.LevelPercents = DefaultConfig().LevelPercents
	}
	if cfg.ExitFractions == [2]float64{} {
		cfg.ExitFractions = DefaultConfig().ExitFractions
	}
	return &Manager{cfg: cfg}
}

// BuildPlan creates the exit plan for a position entered at entryPrice.
func (m *Manager) BuildPlan(entryPrice float64) *ExitPlan {
	plan := &ExitPlan{
		EntryPrice: entryPrice,
		LevelsHit:  make(map[int]bool),
	}
	for i, pct := range m.cfg.LevelPercents {
		plan.TargetPrices[i] = entryPrice * (1 + pct)
	}
	plan.Fractions[0] = m.cfg.ExitFractions[0]
	plan.Fractions[1] = m.cfg.ExitFractions[1]
	plan.Fractions[2] = 1.0 // level 3 exits everything left
	return plan
}

// CheckProfitLevels evaluates from the highest level down and fires the
// first not-yet-hit level whose target the current price meets. The fired
// level is marked in the plan so repeated calls at the same price are
// idempotent.
func (m *Manager) CheckProfitLevels(currentPrice float64, plan *ExitPlan, currentQty int) ExitDecision {
	decision := ExitDecision{Remaining: currentQty}
	if plan == nil || currentQty <= 0 {
		return decision
	}
	if plan.LevelsHit == nil {
		plan.LevelsHit = make(map[int]bool)
	}

	for level := 3; level >= 1; level-- {
		if plan.LevelsHit[level] {
			continue
		}
		target := plan.TargetPrices[level-1]
		if currentPrice < target {
			continue
		}

		exitQty := currentQty // level 3: everything remaining
		if level < 3 {
			exitQty = int(math.Floor(float64(currentQty) * plan.Fractions[level-1]))
		}
		if exitQty <= 0 {
			return decision
		}

		plan.LevelsHit[level] = true
		decision.ShouldExit = true
		decision.Level = level
		decision.TargetPrice = target
		decision.ExitQuantity = exitQty
		decision.Remaining = currentQty - exitQty
		return decision
	}

	return decision
}

// Complete reports whether every level has fired.
func (plan *ExitPlan) Complete() bool {
	return plan.LevelsHit[1] && plan.LevelsHit[2] && plan.LevelsHit[3]
}
