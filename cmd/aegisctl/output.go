package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raaihank/aegis-shield/internal/etl"
	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/shield"
)

// texter is implemented by outputs with a plain text rendering
type texter interface {
	text() string
}

func render(w io.Writer, format string, v texter) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, v.text())
		return err
	}
}

type textOutput struct {
	Text string `json:"text" yaml:"text"`
}

func (o textOutput) text() string { return o.Text }

type matchOutput struct {
	Type  privacy.Type `json:"type" yaml:"type"`
	Value string       `json:"value" yaml:"value"`
	Start int          `json:"start" yaml:"start"`
	End   int          `json:"end" yaml:"end"`
}

type detectOutput struct {
	Matches []matchOutput        `json:"matches" yaml:"matches"`
	Summary map[privacy.Type]int `json:"summary" yaml:"summary"`
	Warning string               `json:"warning,omitempty" yaml:"warning,omitempty"`
}

func newDetectOutput(res *shield.DetectResult) detectOutput {
	out := detectOutput{Matches: []matchOutput{}, Summary: res.Summary, Warning: res.Warning}
	for _, m := range res.Matches {
		out.Matches = append(out.Matches, matchOutput{Type: m.Type, Value: m.Value, Start: m.StartIndex, End: m.EndIndex})
	}
	return out
}

func (o detectOutput) text() string {
	if len(o.Matches) == 0 {
		return "no PII found"
	}
	var b strings.Builder
	for i, m := range o.Matches {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-11s %5d %5d  %s", m.Type, m.Start, m.End, m.Value)
	}
	return b.String()
}

type scrubOutput struct {
	SessionID string               `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Text      string               `json:"text" yaml:"text"`
	Summary   map[privacy.Type]int `json:"summary" yaml:"summary"`
	Warning   string               `json:"warning,omitempty" yaml:"warning,omitempty"`
}

func newScrubOutput(res *shield.ScrubResult) scrubOutput {
	return scrubOutput{SessionID: res.SessionID, Text: res.Scrubbed, Summary: res.Summary, Warning: res.Warning}
}

func (o scrubOutput) text() string { return o.Text }

type summaryOutput struct {
	Summary map[privacy.Type]int `json:"summary" yaml:"summary"`
}

func (o summaryOutput) text() string {
	if len(o.Summary) == 0 {
		return "no PII found"
	}
	return formatSummary(o.Summary)
}

type batchOutput struct {
	Output          string               `json:"output" yaml:"output"`
	TotalRecords    int64                `json:"total_records" yaml:"total_records"`
	ProcessedOK     int64                `json:"processed_ok" yaml:"processed_ok"`
	ProcessedFailed int64                `json:"processed_failed" yaml:"processed_failed"`
	Entities        int64                `json:"entities" yaml:"entities"`
	MappingsSaved   int64                `json:"mappings_saved" yaml:"mappings_saved"`
	Summary         map[privacy.Type]int `json:"summary" yaml:"summary"`
	Duration        string               `json:"duration" yaml:"duration"`
	Errors          []string             `json:"errors,omitempty" yaml:"errors,omitempty"`
}

func newBatchOutput(path string, res *etl.ProcessingResult) batchOutput {
	return batchOutput{
		Output:          path,
		TotalRecords:    res.TotalRecords,
		ProcessedOK:     res.ProcessedOK,
		ProcessedFailed: res.ProcessedFailed,
		Entities:        res.Entities,
		MappingsSaved:   res.MappingsSaved,
		Summary:         res.Summary,
		Duration:        res.Duration.String(),
		Errors:          res.Errors,
	}
}

func (o batchOutput) text() string {
	s := fmt.Sprintf("wrote %s: %d records, %d failed, %d entities", o.Output, o.TotalRecords, o.ProcessedFailed, o.Entities)
	if len(o.Summary) > 0 {
		s += "\n" + formatSummary(o.Summary)
	}
	return s
}

func formatSummary(summary map[privacy.Type]int) string {
	types := make([]string, 0, len(summary))
	for t := range summary {
		types = append(types, string(t))
	}
	sort.Strings(types)

	lines := make([]string, len(types))
	for i, t := range types {
		lines[i] = fmt.Sprintf("%s: %d", t, summary[privacy.Type(t)])
	}
	return strings.Join(lines, "\n")
}
