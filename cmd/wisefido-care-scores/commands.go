package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"wisefido-care-scores/internal/config"
	"wisefido-care-scores/internal/export"
	"wisefido-care-scores/internal/models"
	"wisefido-care-scores/internal/period"
	"wisefido-care-scores/internal/service"

	"github.com/urfave/cli/v3"
)

func calculateCommand() *cli.Command {
	return &cli.Command{
		Name:  "calculate",
		Usage: "Calculate and store resident-domain scores for one snapshot date",
		Flags: withFlags(dbFlags(), scopeFlags(), []cli.Flag{
			&cli.StringFlag{Name: "end-date", Usage: "end date in YYYY-MM-DD format (default: today)"},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withService(ctx, cmd, func(cfg *config.Config, svc *service.ScoringService) error {
				periods, err := resolvePeriods(cmd, cfg)
				if err != nil {
					return err
				}
				end, err := resolveEndDate(cmd, cfg)
				if err != nil {
					return err
				}
				client := cmd.String("client")

				printBanner("Care Analytics - Score Calculation")
				fmt.Printf("Database: %s @ %s:%d (%s)\n", cfg.Database.Database, cfg.Database.Host, cfg.Database.Port, cfg.Database.User)
				fmt.Printf("Periods: %v\n", periods)
				fmt.Printf("End Date: %s\n", end.Format(period.DateLayout))
				fmt.Printf("Client Filter: %s\n", clientLabel(client, "All"))

				summaries, err := svc.Calculate(ctx, end, periods, client)
				printCalculationSummary(summaries, end, client)
				return err
			})
		},
	}
}

func backfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "Recalculate scores for every snapshot date in a range",
		Flags: withFlags(dbFlags(), scopeFlags(), []cli.Flag{
			&cli.StringFlag{Name: "start-date", Usage: "first snapshot date YYYY-MM-DD (default: end date minus --days + 1)"},
			&cli.StringFlag{Name: "end-date", Usage: "last snapshot date YYYY-MM-DD (default: today)"},
			&cli.IntFlag{Name: "days", Value: period.DefaultBackfillDays, Usage: "number of snapshot dates when --start-date is not given"},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withService(ctx, cmd, func(cfg *config.Config, svc *service.ScoringService) error {
				periods, err := resolvePeriods(cmd, cfg)
				if err != nil {
					return err
				}
				end, err := resolveEndDate(cmd, cfg)
				if err != nil {
					return err
				}
				var start *time.Time
				if s := cmd.String("start-date"); s != "" {
					t, err := period.ParseDate(s, cfg.Scoring.Location)
					if err != nil {
						return err
					}
					start = &t
				}
				from, to, err := period.ResolveRange(start, end, int(cmd.Int("days")))
				if err != nil {
					return err
				}
				client := cmd.String("client")
				total := len(period.Days(from, to))

				printBanner("Care Analytics - Score Backfill")
				fmt.Printf("Date Range: %s -> %s (%d days)\n", from.Format(period.DateLayout), to.Format(period.DateLayout), total)
				fmt.Printf("Periods: %v\n", periods)
				fmt.Printf("Client Filter: %s\n", clientLabel(client, "All"))

				totals, err := svc.Backfill(ctx, from, to, periods, client,
					func(index, total int, day time.Time, summaries []models.PeriodSummary) {
						fmt.Println(rule("-"))
						fmt.Printf("[%d/%d] Snapshot date: %s\n", index, total, day.Format(period.DateLayout))
						for _, s := range summaries {
							fmt.Printf("  %2dd -> written %d, processed %d, skipped %d, errors %d\n",
								s.PeriodDays, s.Written, s.Processed, s.Skipped, s.Errors)
						}
					})

				printBanner("Backfill Complete")
				fmt.Printf("Total snapshots processed: %d\n", totals.Days)
				fmt.Printf("Total rows processed:      %d\n", totals.Processed)
				fmt.Printf("Total rows written:        %d\n", totals.Written)
				fmt.Printf("Total rows skipped:        %d\n", totals.Skipped)
				fmt.Printf("Total rows failed:         %d\n", totals.Errors)
				return err
			})
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export one materialized snapshot window to an xlsx file",
		Flags: withFlags(dbFlags(), []cli.Flag{
			&cli.StringFlag{Name: "end-date", Usage: "snapshot end date YYYY-MM-DD (default: today)"},
			&cli.IntFlag{Name: "period", Value: 7, Usage: "lookback period in days"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default: care-scores-<start>-<end>.xlsx)"},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withService(ctx, cmd, func(cfg *config.Config, svc *service.ScoringService) error {
				end, err := resolveEndDate(cmd, cfg)
				if err != nil {
					return err
				}
				win, err := period.NewWindow(end, int(cmd.Int("period")))
				if err != nil {
					return err
				}
				rows, err := svc.Snapshot(ctx, win.StartDateID, win.EndDateID)
				if err != nil {
					return err
				}
				data, err := export.GenerateScoreExport(win.StartDateID, win.EndDateID, rows)
				if err != nil {
					return err
				}

				output := cmd.String("output")
				if output == "" {
					output = fmt.Sprintf("care-scores-%d-%d.xlsx", win.StartDateID, win.EndDateID)
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				fmt.Printf("Exported %d rows for %s to %s\n", len(rows), win.String(), output)
				return nil
			})
		},
	}
}
