// Command simulate runs one damage projection against the configured data
// source and prints a readable report. Data source and model settings come
// from the same environment variables as the service.
//
// Usage:
//
//	go run ./cmd/simulate -region RegionA -mean 2 -std 0.5 -iterations 5000 -seed 7 \
//	  -csv out/sample.csv -xlsx out/report.xlsx -hist out/hist.png -share out/share.png
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ecorisk-service/internal/adapter/export"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/render"
	"github.com/couchcryptid/ecorisk-service/internal/adapter/source"
	"github.com/couchcryptid/ecorisk-service/internal/config"
	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/observability"
	"github.com/couchcryptid/ecorisk-service/internal/session"
)

type options struct {
	region     string
	base       string
	mean       float64
	std        float64
	iterations int
	seed       string
	top        int
	bins       int
	csvPath    string
	xlsxPath   string
	histPath   string
	sharePath  string
}

func main() {
	os.Exit(runMain(os.Args[1:], os.Stdout, os.Stderr))
}

// runMain parses args, runs one simulation and returns the process exit code.
// Failures are logged to stderr.
func runMain(args []string, stdout, stderr io.Writer) int {
	o, err := parseOptions(args, stderr)
	if err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(stderr, nil)).Error("failed to load config", "error", err)
		return 1
	}
	logger := observability.NewLoggerTo(stderr, cfg)

	if err := run(context.Background(), cfg, logger, o, stdout); err != nil {
		logger.Error("simulation failed", "error", err)
		return 1
	}
	return 0
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.region, "region", "", "region whose mean historical damage is the base")
	fs.StringVar(&o.base, "base", "", "explicit base damage; overrides -region for the baseline")
	fs.Float64Var(&o.mean, "mean", 2.0, "mean temperature increase (°C)")
	fs.Float64Var(&o.std, "std", 0.5, "standard deviation of the temperature increase")
	fs.IntVar(&o.iterations, "iterations", 1000, "number of Monte Carlo draws")
	fs.StringVar(&o.seed, "seed", "", "seed for a reproducible run")
	fs.IntVar(&o.top, "top", 5, "number of regions to rank")
	fs.IntVar(&o.bins, "bins", 30, "histogram bins")
	fs.StringVar(&o.csvPath, "csv", "", "write the sample as CSV to this path")
	fs.StringVar(&o.xlsxPath, "xlsx", "", "write the report workbook to this path")
	fs.StringVar(&o.histPath, "hist", "", "write the sample histogram PNG to this path")
	fs.StringVar(&o.sharePath, "share", "", "write the region share chart PNG to this path")
	err := fs.Parse(args)
	return o, err
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, o options, out io.Writer) error {
	req, err := o.request()
	if err != nil {
		return err
	}
	model, err := domain.NewDamageModel(cfg.DamageSensitivity)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics()
	provider, closeProvider, err := source.New(ctx, cfg, clock, metrics, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	svc := session.New(provider, session.Options{
		Model:         model,
		Unit:          cfg.DamageUnit,
		MaxIterations: cfg.MaxIterations,
		DefaultSeed:   cfg.SimulationSeed,
		Clock:         clock,
	}, logger, metrics)
	if err := svc.Reload(ctx); err != nil {
		return err
	}

	report, err := svc.Simulate(ctx, req)
	if err != nil {
		return err
	}
	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}

	printReport(out, report, stats)
	return writeArtifacts(out, o, report)
}

func (o options) request() (session.Request, error) {
	req := session.Request{
		Region:           o.region,
		MeanTempIncrease: o.mean,
		StdTempIncrease:  o.std,
		Iterations:       &o.iterations,
		TopN:             &o.top,
	}
	if o.base != "" {
		v, err := strconv.ParseFloat(o.base, 64)
		if err != nil {
			return req, fmt.Errorf("invalid -base %q", o.base)
		}
		req.BaseDamage = &v
	}
	if o.seed != "" {
		v, err := strconv.ParseUint(o.seed, 10, 64)
		if err != nil {
			return req, fmt.Errorf("invalid -seed %q", o.seed)
		}
		req.Seed = &v
	}
	if req.BaseDamage == nil && req.Region == "" {
		return req, errors.New("one of -region or -base is required")
	}
	return req, nil
}

func printReport(w io.Writer, report session.Report, stats []domain.RegionStat) {
	s := report.Summary
	label := report.Region
	if label == "" {
		label = "(explicit base)"
	}

	fmt.Fprintf(w, "=== Damage projection %s ===\n", report.RunID)
	fmt.Fprintf(w, "Region:        %s\n", label)
	fmt.Fprintf(w, "Base damage:   %s %s\n", money(report.Params.BaseDamage), report.Unit)
	fmt.Fprintf(w, "Warming:       N(%g, %g) °C\n", report.Params.MeanTempIncrease, report.Params.StdTempIncrease)
	fmt.Fprintf(w, "Iterations:    %s\n", humanize.Comma(int64(report.Params.Iterations)))
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "WARNING:       %s\n", warning)
	}
	if s.Count == 0 {
		fmt.Fprintln(w, "\nNo samples drawn.")
	} else {
		fmt.Fprintln(w, "\nProjected damage:")
		fmt.Fprintf(w, "  mean   %s (std %s)\n", money(s.Mean), money(s.StdDev))
		fmt.Fprintf(w, "  p5     %s\n", money(s.P5))
		fmt.Fprintf(w, "  median %s\n", money(s.P50))
		fmt.Fprintf(w, "  p95    %s\n", money(s.P95))
		fmt.Fprintf(w, "  range  %s .. %s\n", money(s.Min), money(s.Max))
	}

	fmt.Fprintln(w, "\nTop regions by historical damage:")
	shares := report.TopRegions.Shares()
	for i, r := range report.TopRegions {
		fmt.Fprintf(w, "  %-5s %-12s %s (%.1f%%)\n",
			humanize.Ordinal(i+1), r.Region, money(r.Damage), shares[i].Share*100)
	}

	if len(stats) > 0 {
		fmt.Fprintln(w, "\nRegion history:")
		for _, st := range stats {
			fmt.Fprintf(w, "  %-12s %s records, %d-%d, %s deaths\n",
				st.Region, humanize.Comma(int64(st.Records)), st.FirstYear, st.LastYear, humanize.Comma(int64(st.Deaths)))
		}
	}
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func writeArtifacts(w io.Writer, o options, report session.Report) error {
	artifacts := []struct {
		path  string
		write func(io.Writer) error
	}{
		{o.csvPath, func(dst io.Writer) error { return export.WriteSampleCSV(dst, report.Sample) }},
		{o.xlsxPath, func(dst io.Writer) error { return export.WriteReportXLSX(dst, report) }},
		{o.histPath, func(dst io.Writer) error { return render.Histogram(dst, report.Sample, o.bins, report.Unit) }},
		{o.sharePath, func(dst io.Writer) error { return render.ShareChart(dst, report.TopRegions) }},
	}

	var written []string
	for _, a := range artifacts {
		if a.path == "" {
			continue
		}
		var buf bytes.Buffer
		if err := a.write(&buf); err != nil {
			return fmt.Errorf("%s: %w", a.path, err)
		}
		if err := writeFile(a.path, buf.Bytes()); err != nil {
			return err
		}
		written = append(written, fmt.Sprintf("%s (%s)", a.path, humanize.Bytes(uint64(buf.Len()))))
	}
	if len(written) > 0 {
		fmt.Fprintf(w, "\nWrote %s\n", strings.Join(written, ", "))
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
