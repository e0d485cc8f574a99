package etl

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/segmentio/parquet-go"
	"github.com/spf13/afero"
)

// readBatchFunc returns up to n records; an empty batch means end of input
type readBatchFunc func(n int) ([]Record, error)

type recordWriter interface {
	Write(rec OutputRecord) error
	Close() error
}

func newReader(format FileFormat, file afero.File) (readBatchFunc, error) {
	switch format {
	case FormatCSV:
		return csvReader(file)
	case FormatParquet:
		return parquetReader(file)
	case FormatJSONL:
		return jsonlReader(file), nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

func newWriter(format FileFormat, w io.Writer) (recordWriter, error) {
	switch format {
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "text", "entities"}); err != nil {
			return nil, err
		}
		return &csvWriter{w: cw}, nil
	case FormatParquet:
		return &parquetWriter{w: parquet.NewWriter(w, parquet.SchemaOf(OutputRecord{}))}, nil
	case FormatJSONL:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		return &jsonlWriter{enc: enc}, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// csvReader expects a header row with a text column and an optional id column
func csvReader(r io.Reader) (readBatchFunc, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, textCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id":
			idCol = i
		case "text":
			textCol = i
		}
	}
	if textCol < 0 {
		return nil, fmt.Errorf("CSV header has no text column: %v", header)
	}

	return func(n int) ([]Record, error) {
		var batch []Record
		for len(batch) < n {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read CSV record: %w", err)
			}
			if textCol >= len(row) {
				return batch, fmt.Errorf("CSV record has %d fields, text is column %d", len(row), textCol+1)
			}

			rec := Record{Text: row[textCol]}
			if idCol >= 0 && idCol < len(row) {
				rec.ID = strings.TrimSpace(row[idCol])
			}
			batch = append(batch, rec)
		}
		return batch, nil
	}, nil
}

func parquetReader(file afero.File) (readBatchFunc, error) {
	// NewReader panics on malformed input, so the footer is validated first
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if _, err := parquet.OpenFile(file, info.Size()); err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	reader := parquet.NewReader(file)

	return func(n int) ([]Record, error) {
		var batch []Record
		for len(batch) < n {
			var rec Record
			err := reader.Read(&rec)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read Parquet record: %w", err)
			}
			batch = append(batch, rec)
		}
		return batch, nil
	}, nil
}

// jsonlReader reads one JSON object per line
func jsonlReader(r io.Reader) readBatchFunc {
	decoder := json.NewDecoder(r)

	return func(n int) ([]Record, error) {
		var batch []Record
		for len(batch) < n {
			var raw struct {
				ID   json.RawMessage `json:"id"`
				Text string          `json:"text"`
			}
			err := decoder.Decode(&raw)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return batch, fmt.Errorf("failed to read JSON record: %w", err)
			}
			batch = append(batch, Record{ID: rawID(raw.ID), Text: raw.Text})
		}
		return batch, nil
	}
}

// rawID accepts string and numeric ids
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type csvWriter struct {
	w *csv.Writer
}

func (c *csvWriter) Write(rec OutputRecord) error {
	entities, err := json.Marshal(rec.Entities)
	if err != nil {
		return err
	}
	return c.w.Write([]string{rec.ID, rec.Text, string(entities)})
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

type parquetWriter struct {
	w *parquet.Writer
}

func (p *parquetWriter) Write(rec OutputRecord) error {
	return p.w.Write(rec)
}

func (p *parquetWriter) Close() error {
	return p.w.Close()
}

type jsonlWriter struct {
	enc *json.Encoder
}

func (j *jsonlWriter) Write(rec OutputRecord) error {
	return j.enc.Encode(rec)
}

func (j *jsonlWriter) Close() error {
	return nil
}
