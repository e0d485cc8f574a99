package etl

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/raaihank/aegis-shield/internal/privacy"
	"github.com/raaihank/aegis-shield/internal/shield"
)

// Record is one input row
type Record struct {
	ID   string `json:"id" parquet:"id"`
	Text string `json:"text" parquet:"text"`
}

// Entity locates one redacted value in the sanitized input text. The value
// itself is never written out.
type Entity struct {
	Type  privacy.Type `json:"type" parquet:"type"`
	Start int          `json:"start" parquet:"start"`
	End   int          `json:"end" parquet:"end"`
}

// OutputRecord is one scrubbed row
type OutputRecord struct {
	ID       string   `json:"id" parquet:"id"`
	Text     string   `json:"text" parquet:"text"`
	Entities []Entity `json:"entities" parquet:"entities"`
}

// Scrubber is the part of the shield service the pipeline needs
type Scrubber interface {
	Scrub(ctx context.Context, req shield.ScrubRequest) (*shield.ScrubResult, error)
	SaveMappings(ctx context.Context, items map[string]privacy.Mapping) error
}

// ProcessingResult represents the result of processing a dataset
type ProcessingResult struct {
	TotalRecords    int64                `json:"total_records"`
	ProcessedOK     int64                `json:"processed_ok"`
	ProcessedFailed int64                `json:"processed_failed"`
	Empty           int64                `json:"empty"`
	Entities        int64                `json:"entities"`
	Summary         map[privacy.Type]int `json:"summary"`
	MappingsSaved   int64                `json:"mappings_saved"`
	Duration        time.Duration        `json:"duration"`
	Errors          []string             `json:"errors,omitempty"`
}

// Progress is reported every ProgressReport records
type Progress struct {
	Processed int64   `json:"processed"`
	Failed    int64   `json:"failed"`
	Rate      float64 `json:"rate"` // records per second
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSONL   FileFormat = "jsonl"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".parquet":
		return FormatParquet
	case ".jsonl", ".ndjson", ".json":
		return FormatJSONL
	default:
		return FormatCSV
	}
}

// ParseFileFormat accepts an explicit format name
func ParseFileFormat(name string) (FileFormat, bool) {
	switch FileFormat(strings.ToLower(name)) {
	case FormatCSV:
		return FormatCSV, true
	case FormatParquet:
		return FormatParquet, true
	case FormatJSONL, "json", "ndjson":
		return FormatJSONL, true
	}
	return "", false
}
