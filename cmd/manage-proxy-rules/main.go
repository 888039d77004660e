package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"payrouter/internal/config"
	"payrouter/internal/db"
	"payrouter/internal/repository"

	"github.com/google/uuid"
)

func main() {
	var configPath string
	var add string
	var remove string
	var channelID string
	var creatorID string

	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&add, "add", "", "Country to add a proxy rule for")
	flag.StringVar(&remove, "remove", "", "Country to remove a proxy rule from")
	flag.StringVar(&channelID, "channel", "", "Payout channel ID for -add/-remove")
	flag.StringVar(&creatorID, "creator", "", "List proxy rules over a creator's channels")
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
	proxies := repository.NewProxyRuleRepository(database)

	switch {
	case add != "":
		channel := mustUUID("channel", channelID)
		if err := proxies.AddRule(ctx, add, channel); err != nil {
			log.Fatalf("Failed to add rule: %v", err)
		}
		fmt.Printf("Rule added: %s -> %s\n", add, channel)

	case remove != "":
		channel := mustUUID("channel", channelID)
		if err := proxies.RemoveRule(ctx, remove, channel); err != nil {
			log.Fatalf("Failed to remove rule: %v", err)
		}
		fmt.Printf("Rule removed: %s -> %s\n", remove, channel)

	case creatorID != "":
		rules, err := proxies.FindRulesForCreator(ctx, mustUUID("creator", creatorID))
		if err != nil {
			log.Fatalf("Failed to query rules: %v", err)
		}
		fmt.Println("Proxy Rules")
		fmt.Println(strings.Repeat("=", 60))
		for country, channels := range rules {
			for _, channel := range channels {
				fmt.Printf("%-20s %s\n", country, channel)
			}
		}

	default:
		flag.Usage()
	}
}

func mustUUID(name, raw string) uuid.UUID {
	parsed, err := uuid.Parse(raw)
	if err != nil {
		log.Fatalf("Invalid -%s value %q: %v", name, raw, err)
	}
	return parsed
}
