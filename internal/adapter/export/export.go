// Package export converts simulation reports into downloadable CSV and XLSX
// artifacts.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/ecorisk-service/internal/domain"
	"github.com/couchcryptid/ecorisk-service/internal/session"
)

// Sheet names of the report workbook.
const (
	SheetSample  = "Sample"
	SheetSummary = "Summary"
	SheetRegions = "Top Regions"
)

// Content types for HTTP responses.
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// WriteSampleCSV writes one row per sample value under an iteration,damage header.
func WriteSampleCSV(w io.Writer, sample domain.DamageSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"iteration", "damage"}); err != nil {
		return err
	}
	for i, v := range sample {
		if err := cw.Write([]string{strconv.Itoa(i), strconv.FormatFloat(v, 'f', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReportXLSX writes a workbook with the sample, its summary and the
// region ranking on separate sheets.
func WriteReportXLSX(w io.Writer, report session.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSample); err != nil {
		return err
	}
	if err := writeRows(f, SheetSample, sampleRows(report)); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	if err := writeRows(f, SheetSummary, summaryRows(report)); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetSummary, "A", "B", 24); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetRegions); err != nil {
		return err
	}
	if err := writeRows(f, SheetRegions, regionRows(report)); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func sampleRows(report session.Report) [][]any {
	rows := make([][]any, 0, len(report.Sample)+1)
	rows = append(rows, []any{"iteration", "damage"})
	for i, v := range report.Sample {
		rows = append(rows, []any{i, v})
	}
	return rows
}

func summaryRows(report session.Report) [][]any {
	s := report.Summary
	rows := [][]any{
		{"run_id", report.RunID},
		{"generated_at", report.GeneratedAt.Format(time.RFC3339)},
		{"region", report.Region},
		{"unit", report.Unit},
		{"base_damage", report.Params.BaseDamage},
		{"mean_temp_increase", report.Params.MeanTempIncrease},
		{"std_temp_increase", report.Params.StdTempIncrease},
		{"iterations", report.Params.Iterations},
		{"count", s.Count},
		{"mean", s.Mean},
		{"std_dev", s.StdDev},
		{"min", s.Min},
		{"p5", s.P5},
		{"p50", s.P50},
		{"p95", s.P95},
		{"max", s.Max},
	}
	for _, w := range report.Warnings {
		rows = append(rows, []any{"warning", w.String()})
	}
	return rows
}

func regionRows(report session.Report) [][]any {
	rows := [][]any{{"rank", "region", "damage", "share"}}
	for i, s := range report.TopRegions.Shares() {
		rows = append(rows, []any{i + 1, s.Region, report.TopRegions[i].Damage, s.Share})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
