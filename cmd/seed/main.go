// File: cmd/seed/main.go
//
// Seeds the access-code table from the codes section of the config file.
// Safe to re-run: existing codes (used or not) are never touched.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"telegram-channel-gate/internal/config"
	"telegram-channel-gate/internal/domain/model"
	"telegram-channel-gate/internal/domain/ports/repository"
	pg "telegram-channel-gate/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if len(cfg.Codes) == 0 {
		log.Fatal("no codes configured; add a codes: section to the config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	codeRepo := pg.NewAccessCodeRepo(pool)
	for _, c := range cfg.Codes {
		if c.DurationDays <= 0 {
			log.Fatalf("code %q has a non-positive duration", c.Code)
		}
		ac := &model.AccessCode{Code: c.Code, DurationDays: c.DurationDays}
		if err := codeRepo.Save(ctx, repository.NoTX, ac); err != nil {
			log.Fatalf("seed code %q: %v", c.Code, err)
		}
	}

	all, err := codeRepo.ListAll(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list codes: %v", err)
	}
	for _, c := range all {
		state := "available"
		if c.Used {
			state = "used"
		}
		fmt.Printf("  - %s (days=%d, %s)\n", c.Code, c.DurationDays, state)
	}
	fmt.Printf("Seeding complete. %d codes in table.\n", len(all))
}
