package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"payrouter/internal/config"
	"payrouter/internal/db"
	"payrouter/internal/models"
	"payrouter/internal/repository"

	"github.com/shopspring/decimal"
)

func main() {
	var configPath string
	var provider string
	var fee string
	var minUSD string
	var maxUSD string
	var dryRun bool

	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&provider, "provider", "", "Provider name to update (empty to list all)")
	flag.StringVar(&fee, "fee", "", "Default fee in USD")
	flag.StringVar(&minUSD, "min", "", "Transfer minimum in USD (empty keeps the global limit)")
	flag.StringVar(&maxUSD, "max", "", "Transfer maximum in USD (empty keeps the global limit)")
	flag.BoolVar(&dryRun, "dry-run", false, "Show what would be updated without actually updating")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	database, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	ctx := context.Background()
	reference := repository.NewReferenceRepository(database)

	providers, err := reference.FindPayoutProviders(ctx)
	if err != nil {
		log.Fatalf("Failed to query payout providers: %v", err)
	}

	fmt.Println("Payout Provider Parameters")
	fmt.Println(strings.Repeat("=", 60))
	for _, row := range providers {
		fmt.Printf("%-14s fee=%s min=%s max=%s\n",
			row.Name, row.DefaultFee, boundsString(row.TransferMinUSD), boundsString(row.TransferMaxUSD))
	}
	fmt.Println(strings.Repeat("=", 60))

	if provider == "" {
		return
	}

	update := findProvider(providers, provider)
	if update == nil {
		update = &models.PayoutProvider{Name: provider}
	}
	if fee != "" {
		update.DefaultFee = mustDecimal("fee", fee)
	}
	if minUSD != "" {
		parsed := mustDecimal("min", minUSD)
		update.TransferMinUSD = &parsed
	}
	if maxUSD != "" {
		parsed := mustDecimal("max", maxUSD)
		update.TransferMaxUSD = &parsed
	}

	fmt.Printf("\nUpdating %s: fee=%s min=%s max=%s\n",
		update.Name, update.DefaultFee, boundsString(update.TransferMinUSD), boundsString(update.TransferMaxUSD))
	if dryRun {
		fmt.Println("Mode: DRY RUN (no changes made)")
		return
	}

	if err := reference.SetProviderParameters(ctx, update); err != nil {
		log.Fatalf("Failed to update provider parameters: %v", err)
	}
	fmt.Println("Done")
}

func findProvider(providers []*models.PayoutProvider, name string) *models.PayoutProvider {
	for _, row := range providers {
		if row.Name == name {
			return row
		}
	}
	return nil
}

func boundsString(value *decimal.Decimal) string {
	if value == nil {
		return "global"
	}
	return value.String()
}

func mustDecimal(name, raw string) decimal.Decimal {
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("Invalid -%s value %q: %v", name, raw, err)
	}
	return parsed
}
