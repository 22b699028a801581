package main

import (
	"fmt"
	"strings"
	"time"

	"wisefido-care-scores/internal/config"
	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/period"

	"github.com/urfave/cli/v3"
)

// applyOverrides 命令行数据库参数优先于环境变量
func applyOverrides(cfg *config.Config, cmd *cli.Command) error {
	if v := cmd.String("password"); v != "" {
		cfg.Database.Password = v
	}
	if v := cmd.String("user"); v != "" {
		cfg.Database.User = v
	}
	if v := cmd.String("dbname"); v != "" {
		cfg.Database.Database = v
	}
	if v := cmd.String("host"); v != "" {
		cfg.Database.Host = v
	}
	if v := int(cmd.Int("port")); v != 0 {
		cfg.Database.Port = v
	}
	if v := cmd.String("sslmode"); v != "" {
		cfg.Database.SSLMode = v
	}
	return cfg.Database.Validate()
}

func resolvePeriods(cmd *cli.Command, cfg *config.Config) ([]int, error) {
	if raw := cmd.String("periods"); raw != "" {
		return period.ParsePeriods(raw)
	}
	return cfg.Scoring.Periods, nil
}

func resolveEndDate(cmd *cli.Command, cfg *config.Config) (time.Time, error) {
	if raw := cmd.String("end-date"); raw != "" {
		return period.ParseDate(raw, cfg.Scoring.Location)
	}
	return period.StartOfDay(time.Now().In(cfg.Scoring.Location)), nil
}

func clientLabel(client, all string) string {
	if client == "" {
		return all
	}
	return client
}

func rule(ch string) string {
	return strings.Repeat(ch, 72)
}

func printBanner(title string) {
	fmt.Println(rule("="))
	fmt.Println(title)
	fmt.Println(rule("="))
}

func printCalculationSummary(summaries []models.PeriodSummary, end time.Time, client string) {
	fmt.Println()
	printBanner("Score Calculation Complete")
	fmt.Printf("End Date: %s\n", end.Format(period.DateLayout))
	fmt.Printf("Client Scope: %s\n", clientLabel(client, "All active clients"))
	for _, s := range summaries {
		fmt.Println(rule("-"))
		fmt.Printf("Period: %d days (%d -> %d)\n", s.PeriodDays, s.StartDateID, s.EndDateID)
		fmt.Printf("Residents: %d | Domains: %d\n", s.Residents, s.Domains)
		fmt.Printf("Processed combinations: %d\n", s.Processed)
		fmt.Printf("Scores written:         %d\n", s.Written)
		fmt.Printf("Combinations skipped:   %d\n", s.Skipped)
		fmt.Printf("Combinations failed:    %d\n", s.Errors)
		fmt.Printf("RED alerts:             %d\n", s.RedAlerts)
	}
	fmt.Println(rule("="))
}
