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
	var set string

	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&set, "set", "", "Rates to upsert, e.g. EUR=1.08,ARS=0.00085 (empty to list)")
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

	if set != "" {
		var rates []*models.CurrencyRate
		for _, pair := range strings.Split(set, ",") {
			symbol, raw, ok := strings.Cut(pair, "=")
			if !ok {
				log.Fatalf("Invalid rate %q, expected SYMBOL=VALUE", pair)
			}
			rate, err := decimal.NewFromString(raw)
			if err != nil {
				log.Fatalf("Invalid rate value %q: %v", raw, err)
			}
			rates = append(rates, &models.CurrencyRate{Symbol: symbol, ToUSD: rate})
		}
		if err := reference.UpsertCurrencyRates(ctx, rates); err != nil {
			log.Fatalf("Failed to upsert rates: %v", err)
		}
		fmt.Printf("Upserted %d rate(s)\n", len(rates))
	}

	rows, err := reference.FindCurrencyRates(ctx)
	if err != nil {
		log.Fatalf("Failed to query rates: %v", err)
	}
	fmt.Println("Currency Rates (1 unit in USD)")
	fmt.Println(strings.Repeat("=", 40))
	for _, row := range rows {
		fmt.Printf("%-8s %s\n", row.Symbol, row.ToUSD)
	}
}
