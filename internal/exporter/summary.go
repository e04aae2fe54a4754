package exporter

import (
	"context"
	"fmt"
	"strings"

	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/alvmarrod/tree-exporter/internal/tree"
)

// summaryTypes lists the file types counted individually, in report order.
// Every other file type is counted under "Other Files".
var summaryTypes = []struct {
	label tree.TypeLabel
	title string
}{
	{tree.LabelGoogleSheet, "Google Sheets"},
	{tree.LabelGoogleDoc, "Google Docs"},
	{tree.LabelGoogleSlide, "Google Slides"},
	{tree.LabelPDF, "PDFs"},
	{tree.LabelWord, "Word Documents"},
	{tree.LabelExcel, "Excel Files"},
	{tree.LabelPowerPoint, "PowerPoint Files"},
}

// Summarize aggregates the finished report into totals per category and per
// file type and writes them as the job's summary report.
func Summarize(ctx context.Context, job *Job) ([]storage.SummaryLine, error) {
	status, err := job.Sink.StatusField(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read status field: %w", err)
	}
	if !strings.Contains(status, "Completed") {
		return nil, ErrNotCompleted
	}

	rows, err := job.Sink.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	lines := aggregate(rows)
	if err := job.Sink.WriteSummary(ctx, lines); err != nil {
		return nil, &WriteError{Op: "write summary", Err: err}
	}
	job.logger().Infof("Summary written: %d items", lines[len(lines)-1].Count)
	return lines, nil
}

func aggregate(rows []storage.Row) []storage.SummaryLine {
	var folders, files, tabs, other int
	byType := make(map[tree.TypeLabel]int, len(summaryTypes))
	for _, t := range summaryTypes {
		byType[t.label] = 0
	}

	for _, row := range rows {
		switch row.Category {
		case storage.CategoryFolder:
			folders++
		case storage.CategoryFile:
			files++
			label := tree.TypeLabel(row.TypeLabel)
			if _, ok := byType[label]; ok {
				byType[label]++
			} else {
				other++
			}
		case storage.CategoryTab:
			tabs++
		}
	}

	lines := []storage.SummaryLine{
		{Label: "Total Folders", Count: folders},
		{Label: "Total Files", Count: files},
		{Label: "Total Tabs", Count: tabs},
	}
	for _, t := range summaryTypes {
		lines = append(lines, storage.SummaryLine{Label: t.title, Count: byType[t.label]})
	}
	lines = append(lines,
		storage.SummaryLine{Label: "Other Files", Count: other},
		storage.SummaryLine{Label: "Total Items", Count: folders + files + tabs},
	)
	return lines
}
