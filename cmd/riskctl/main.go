package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"equity-risk-engine/internal/account"
	"equity-risk-engine/internal/broker"
	"equity-risk-engine/internal/compliance"
	"equity-risk-engine/internal/config"
	"equity-risk-engine/internal/executor"
	"equity-risk-engine/internal/logger"
	"equity-risk-engine/internal/monitoring"
	"equity-risk-engine/internal/portfolio"
	"equity-risk-engine/internal/profit"
	"equity-risk-engine/internal/quotes"
	"equity-risk-engine/internal/risk"
	"equity-risk-engine/internal/sizing"
	"equity-risk-engine/internal/store"
	"equity-risk-engine/pkg/reporting"
	"equity-risk-engine/pkg/types"
)

// platform bundles the wired components for one run
type platform struct {
	cfg      *config.PlatformConfig
	store    store.Store
	broker   broker.Broker
	log      *logger.Logger
	risk     *risk.Manager
	executor *executor.Executor
	health   *monitoring.HealthChecker
	quotes   quotes.Provider
	profit   *profit.Manager
}

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file (e.g., default.json); defaults apply when omitted")
		envFile     = flag.String("env", ".env", "Environment file path (default: .env)")
		accountID   = flag.String("account", "", "Account to operate on")
		action      = flag.String("action", "status", "Action: status, validate, execute, monitor")
		symbol      = flag.String("symbol", "", "Symbol for validate/execute")
		side        = flag.String("side", "BUY", "Side: BUY or SELL")
		quantity    = flag.Int("qty", 0, "Share quantity (0 = size from confidence)")
		price       = flag.Float64("price", 0, "Reference price for the signal")
		confidence  = flag.Float64("confidence", 0.5, "Signal confidence 0.0-1.0")
		limitPrice  = flag.Float64("limit", 0, "Limit price (market order when 0)")
		dryRun      = flag.Bool("dry-run", true, "Dry run mode - no actual orders (default: true)")
		interval    = flag.Duration("interval", time.Minute, "Poll interval for monitor action")
		healthPort  = flag.Int("health-port", 8080, "Health endpoint port for monitor action")
		metricsPort = flag.Int("metrics-port", 9090, "Prometheus endpoint port for monitor action")
	)
	flag.Parse()

	if *accountID == "" {
		log.Fatal("Please specify an account with -account flag")
	}

	// Load environment variables from .env file
	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No env file loaded from %s: %v", *envFile, err)
	}

	p, err := wirePlatform(*configFile, *accountID)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer p.log.Close()
	defer p.store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch *action {
	case "status":
		runStatus(ctx, p, *accountID)
	case "validate", "execute":
		sig, execCtx, err := buildSignal(*accountID, *symbol, *side, *quantity, *price, *confidence, *limitPrice, *dryRun || *action == "validate")
		if err != nil {
			log.Fatalf("Invalid signal: %v", err)
		}
		runExecute(ctx, p, sig, execCtx)
	case "monitor":
		runMonitor(ctx, cancel, p, *accountID, *interval, *dryRun, *healthPort, *metricsPort)
	default:
		log.Fatalf("Unknown action %q", *action)
	}
}

// wirePlatform loads configuration and builds the component graph
func wirePlatform(configFile, accountID string) (*platform, error) {
	var cfg *config.PlatformConfig
	var err error
	if configFile != "" {
		cfg, err = config.LoadPlatformConfig(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}
	cfg.ApplyEnvOverrides()

	fileLog, err := logger.New(cfg.LogDir, accountID)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	quoteProvider := quotes.NewYahoo()

	var b broker.Broker
	switch cfg.Broker.Name {
	case "gateway":
		b = broker.NewGateway(broker.GatewayConfig{
			BaseURL: cfg.Broker.GatewayURL,
			APIKey:  cfg.Broker.APIKey,
			Timeout: cfg.Broker.Timeout,
		})
	default:
		paper := broker.NewPaper(quoteProvider)
		paper.Fund(accountID, 10000)
		b = paper
	}

	monitor := account.NewMonitor(b, fileLog, account.Config{
		CashModeThreshold: cfg.Account.CashModeThreshold,
		CacheTTL:          cfg.Account.CacheTTL,
	})
	comp := compliance.NewManager(st, monitor, fileLog, compliance.Config{
		MaxDayTrades:           cfg.Compliance.MaxDayTrades,
		LookbackBusinessDays:   cfg.Compliance.LookbackBusinessDays,
		SettlementBusinessDays: cfg.Compliance.SettlementBusinessDays,
		MaxDailyTrades:         cfg.Compliance.MaxDailyTrades,
		MaxWeeklyTrades:        cfg.Compliance.MaxWeeklyTrades,
		StrictPDT:              cfg.Compliance.StrictPDT,
		StrictGFV:              cfg.Compliance.StrictGFV,
	})
	sz := sizing.NewManager(monitor, sizing.Config{
		HighConfidence:   cfg.Sizing.HighConfidence,
		MediumConfidence: cfg.Sizing.MediumConfidence,
		HighPct:          cfg.Sizing.HighPct,
		MediumPct:        cfg.Sizing.MediumPct,
		LowPct:           cfg.Sizing.LowPct,
		MaxPositionPct:   cfg.Sizing.MaxPositionPct,
		MinShares:        cfg.Sizing.MinShares,
	})
	pf := portfolio.NewChecker(b, fileLog, portfolio.Config{
		MaxPositionPct:       cfg.Portfolio.MaxPositionPct,
		MaxSymbolExposurePct: cfg.Portfolio.MaxSymbolExposurePct,
		MaxSectorExposurePct: cfg.Portfolio.MaxSectorExposurePct,
		MaxCorrelation:       cfg.Portfolio.MaxCorrelation,
		MaxDailyLossPct:      cfg.Portfolio.MaxDailyLossPct,
		BreakerCooldown:      cfg.Portfolio.BreakerCooldown,
		RegimeCacheTTL:       cfg.Portfolio.RegimeCacheTTL,
		HighVolReduction:     cfg.Portfolio.HighVolReduction,
		StrictMode:           cfg.Portfolio.StrictMode,
	}, nil, nil)

	rm := risk.NewManager(monitor, comp, sz, pf)
	health := monitoring.NewHealthChecker()
	health.SetStoreConnected(true)
	exec := executor.New(b, rm, st, fileLog, health)

	return &platform{
		cfg:      cfg,
		store:    st,
		broker:   b,
		log:      fileLog,
		risk:     rm,
		executor: exec,
		health:   health,
		quotes:   quoteProvider,
		profit:   profit.NewManager(profit.Config{LevelPercents: cfg.Profit.LevelPercents, ExitFractions: cfg.Profit.ExitFractions}),
	}, nil
}

func buildSignal(accountID, symbol, side string, qty int, price, confidence, limitPrice float64, dryRun bool) (*types.TradingSignal, types.ExecutionContext, error) {
	if symbol == "" {
		return nil, types.ExecutionContext{}, fmt.Errorf("missing -symbol")
	}
	sigType := types.SignalType(strings.ToUpper(side))
	if !sigType.Actionable() {
		return nil, types.ExecutionContext{}, fmt.Errorf("side must be BUY or SELL, got %q", side)
	}

	sig := &types.TradingSignal{
		Type:       sigType,
		Symbol:     strings.ToUpper(symbol),
		Price:      price,
		Quantity:   qty,
		Confidence: confidence,
		Strategy:   "riskctl",
		Timestamp:  time.Now(),
	}
	execCtx := types.ExecutionContext{
		AccountID: accountID,
		Strategy:  "riskctl",
		DryRun:    dryRun,
		OrderType: types.OrderTypeMarket,
	}
	if limitPrice > 0 {
		execCtx.OrderType = types.OrderTypeLimit
		execCtx.LimitPrice = limitPrice
	}
	return sig, execCtx, nil
}

func runStatus(ctx context.Context, p *platform, accountID string) {
	status := p.risk.GetRiskStatus(ctx, accountID)
	monitoring.UpdateBalance(accountID, status.Balance)
	reporting.NewConsoleReporter().PrintRiskStatus(status)
}

func runExecute(ctx context.Context, p *platform, sig *types.TradingSignal, execCtx types.ExecutionContext) {
	entry := p.executor.ExecuteSignal(ctx, sig, execCtx)
	out, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))
	if entry.Status != executor.StatusSuccess && entry.Status != executor.StatusRejectedDryRun {
		os.Exit(1)
	}
}

// runMonitor polls live quotes against open positions and executes
// profit-taking sells when an exit level fires
func runMonitor(ctx context.Context, cancel context.CancelFunc, p *platform, accountID string, interval time.Duration, dryRun bool, healthPort, metricsPort int) {
	go setupMonitoringServers(p.health, healthPort, metricsPort)

	plans := make(map[string]*profit.ExitPlan)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Monitoring account %s every %s (dry-run=%t)", accountID, interval, dryRun)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkProfitLevels(ctx, p, accountID, plans, dryRun)
			}
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
}

func checkProfitLevels(ctx context.Context, p *platform, accountID string, plans map[string]*profit.ExitPlan, dryRun bool) {
	positions, err := p.broker.GetPositions(ctx, accountID)
	if err != nil {
		p.log.LogError("position fetch failed", err)
		p.health.SetBrokerConnected(false)
		return
	}
	p.health.SetBrokerConnected(true)

	for _, pos := range positions {
		if pos.Quantity <= 0 {
			continue
		}
		plan, ok := plans[pos.Symbol]
		if !ok {
			plan = p.profit.BuildPlan(pos.AvgPrice)
			plans[pos.Symbol] = plan
		}

		current, err := p.quotes.Price(pos.Symbol)
		if err != nil {
			p.log.LogError("quote fetch failed for "+pos.Symbol, err)
			continue
		}
		monitoring.UpdateBalance(accountID, current*pos.Quantity)

		decision := p.profit.CheckProfitLevels(current, plan, int(pos.Quantity))
		if !decision.ShouldExit {
			continue
		}

		p.log.Trade("profit level %d hit for %s at $%.2f, selling %d of %d",
			decision.Level, pos.Symbol, current, decision.ExitQuantity, int(pos.Quantity))

		sig := &types.TradingSignal{
			Type:       types.SignalSell,
			Symbol:     pos.Symbol,
			Price:      current,
			Quantity:   decision.ExitQuantity,
			Confidence: 1.0,
			Strategy:   "profit-taking",
			Timestamp:  time.Now(),
		}
		p.executor.ExecuteSignal(ctx, sig, types.ExecutionContext{
			AccountID: accountID,
			Strategy:  "profit-taking",
			DryRun:    dryRun,
			OrderType: types.OrderTypeMarket,
		})
	}
}

func setupMonitoringServers(healthChecker *monitoring.HealthChecker, healthPort, metricsPort int) {
	// Create separate mux for health server
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", healthChecker)

	// Start health server
	go func() {
		log.Printf("Starting health server on port %d", healthPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", healthPort), healthMux); err != nil {
			log.Printf("Health server error: %v", err)
		}
	}()

	// Start Prometheus metrics server
	go func() {
		log.Printf("Starting Prometheus server on port %d", metricsPort)
		if err := http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), monitoring.NewMetricsHandler()); err != nil {
			log.Printf("Prometheus server error: %v", err)
		}
	}()
}
