package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"equity-risk-engine/internal/config"
	"equity-risk-engine/internal/store"
	"equity-risk-engine/pkg/reporting"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (defaults apply when omitted)")
		envFile    = flag.String("env", ".env", "Environment file path (default: .env)")
		accountID  = flag.String("account", "", "Account to report on")
		limit      = flag.Int("limit", 100, "Maximum number of audit records")
		output     = flag.String("output", "", "Excel output path (console only when empty)")
	)
	flag.Parse()

	if *accountID == "" {
		log.Fatal("Please specify an account with -account flag")
	}

	// Load environment variables from .env file
	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No env file loaded from %s: %v", *envFile, err)
	}

	var cfg *config.PlatformConfig
	var err error
	if *configFile != "" {
		cfg, err = config.LoadPlatformConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	} else {
		cfg = config.Default()
	}

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := st.AuditLogs(ctx, *accountID, *limit)
	if err != nil {
		log.Fatalf("Failed to load audit logs: %v", err)
	}
	if len(records) == 0 {
		fmt.Printf("No audit records for account %s\n", *accountID)
		return
	}

	reporting.NewConsoleReporter().PrintAuditLogs(records)

	if *output != "" {
		if err := reporting.NewExcelReporter().WriteAuditXLSX(records, *output); err != nil {
			log.Fatalf("Failed to write Excel report: %v", err)
		}
		fmt.Printf("📄 Wrote %d audit records to %s\n", len(records), *output)
	}
}
