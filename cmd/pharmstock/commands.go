package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/pharmstock/backend-go/internal/app"
	"github.com/andresuchdata/pharmstock/backend-go/internal/domain"
	"github.com/andresuchdata/pharmstock/backend-go/internal/ingest"
	"github.com/andresuchdata/pharmstock/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/pharmstock/backend-go/internal/service"
	"github.com/andresuchdata/pharmstock/backend-go/pkg/logger"
)

func runClassify(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("classify needs at least one file", 2)
	}
	decoder := ingest.NewDecoder(loadConfig().Matching.Brands())
	for _, path := range c.Args().Slice() {
		wb, err := ingest.OpenWorkbook(path)
		if err != nil {
			fmt.Fprintf(c.App.Writer, "%s\terror\t%v\n", path, err)
			continue
		}
		batch, err := decoder.Decode(wb)
		if err != nil {
			fmt.Fprintf(c.App.Writer, "%s\terror\t%v\n", path, err)
			continue
		}
		line := fmt.Sprintf("%s\t%s\t%d", path, batch.Kind, batch.Len())
		if batch.Month != "" {
			line += "\t" + batch.Month
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func readCorrections(path string) ([]domain.ManualCorrection, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corrections: %w", err)
	}
	var list []domain.ManualCorrection
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode corrections %s: %w", path, err)
	}
	return list, nil
}

func writeExport(path string, exp *service.Export) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, exp.Body, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.Log.Info().Str("path", path).Msg("workbook written")
	return nil
}

func logSummary(s domain.DashboardSummary) {
	ev := logger.Log.Info().
		Str("snapshot", s.SnapshotID).
		Int("products", s.Products).
		Int("merged", s.Merged).
		Int("withdrawn", s.Withdrawn).
		Float64("purchase_cost", s.PurchaseCost).
		Strs("months", s.LedgerMonths)
	for _, a := range s.Alerts {
		ev = ev.Int(string(a.Level), a.Count)
	}
	ev.Msg("catalogue computed")
}

func runAnalyze(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("analyze needs at least one file", 2)
	}
	ctx := c.Context
	a, err := app.New(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()
	svc := a.Service

	if path := c.String("corrections"); path != "" {
		list, err := readCorrections(path)
		if err != nil {
			return err
		}
		if err := svc.ImportCorrections(ctx, list); err != nil {
			return err
		}
	}

	outcomes, err := svc.ImportFiles(ctx, c.Args().Slice())
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%d\n", o.Source, o.Kind, o.Status, o.Rows)
	}

	summary, err := svc.Recompute(ctx)
	if err != nil {
		return err
	}
	logSummary(summary)

	if path := c.String("purchase"); path != "" {
		exp, err := svc.PurchaseReport(domain.ParsePurchaseScope(c.String("scope")))
		if err != nil {
			return err
		}
		for _, s := range exp.Suppliers {
			fmt.Fprintf(c.App.Writer, "%s\t%d products\t%s\n", s.Supplier, len(s.Products), s.Total.StringFixed(2))
		}
		if err := writeExport(path, exp); err != nil {
			return err
		}
	}
	if path := c.String("report"); path != "" {
		exp, err := svc.FullReport()
		if err != nil {
			return err
		}
		if err := writeExport(path, exp); err != nil {
			return err
		}
	}
	return nil
}

func runMigrate(c *cli.Context) error {
	cfg := loadConfig().Database
	cfg.Enabled = true
	if url := c.String("db-url"); url != "" {
		cfg.URL = url
	}
	db, err := postgres.NewDB(c.Context, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Log.Info().Msg("migrations applied")
	return nil
}

func runSync(c *cli.Context) error {
	ctx := c.Context
	a, err := app.New(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	outcomes, err := a.Service.SyncInbox(ctx)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%d\n", o.Source, o.Kind, o.Status, o.Rows)
	}
	if !a.Service.Loaded() {
		logger.Log.Info().Msg("nothing to publish")
		return nil
	}
	published, err := a.Service.PublishReports(ctx, domain.ParsePurchaseScope(c.String("scope")))
	if err != nil {
		return err
	}
	for _, p := range published {
		fmt.Fprintln(c.App.Writer, p)
	}
	return nil
}
