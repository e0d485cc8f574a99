package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "aegis.yaml")
	content := "store:\n  type: file\n  file:\n    dir: " + filepath.Join(dir, "mappings") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestScrubThenRestoreAcrossInvocations(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "scrub", "--config", cfg, "--session", "s1", "--text", "Email jane@example.com today")
	require.NoError(t, err)
	assert.Equal(t, "Email [EMAIL] today\n", out)

	out, err = execute(t, "Reply sent to [EMAIL]\n", "restore", "--config", cfg, "--session", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Reply sent to jane@example.com\n", out)

	_, err = execute(t, "", "forget", "s1", "--config", cfg)
	require.NoError(t, err)

	_, err = execute(t, "", "restore", "--config", cfg, "--session", "s1", "--text", "[EMAIL]")
	assert.Error(t, err)
}

func TestScrubJSONOutputOmitsOriginals(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "scrub", "-o", "json", "--config", cfg, "--ephemeral", "--text", "SSN 123-45-6789")
	require.NoError(t, err)
	assert.NotContains(t, out, "123-45-6789")

	var got scrubOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "SSN [SSN]", got.Text)
	assert.Equal(t, 1, got.Summary["ssn"])
}

func TestDetectYAML(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, "", "detect", "-o", "yaml", "--config", cfg, "--text", "Mail jane@example.com")
	require.NoError(t, err)

	var got detectOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got.Matches, 1)
	assert.Equal(t, "jane@example.com", got.Matches[0].Value)
	assert.Equal(t, 5, got.Matches[0].Start)
	assert.Equal(t, 21, got.Matches[0].End)
}

func TestSummaryAndRedactFromFile(t *testing.T) {
	cfg := writeConfig(t)
	input := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("jane@example.com and bob@example.com\n"), 0o600))

	out, err := execute(t, "", "summary", "--config", cfg, "--file", input)
	require.NoError(t, err)
	assert.Equal(t, "email: 2\n", out)

	out, err = execute(t, "", "redact", "--config", cfg, "--file", input)
	require.NoError(t, err)
	assert.Equal(t, "[EMAIL] and [EMAIL]\n", out)
}

func TestBatch(t *testing.T) {
	cfg := writeConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "prompts.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(
		`{"id":"1","text":"call (555) 123-4567"}`+"\n"+
			`{"id":"2","text":"nothing here"}`+"\n"), 0o600))

	out, err := execute(t, "", "batch", "-o", "json", "--config", cfg, "--input", input, "--workers", "2")
	require.NoError(t, err)

	var got batchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, filepath.Join(dir, "prompts.scrubbed.jsonl"), got.Output)
	assert.Equal(t, int64(2), got.TotalRecords)
	assert.Equal(t, int64(1), got.Entities)

	data, err := os.ReadFile(got.Output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "call [PHONE]")
	assert.NotContains(t, string(data), "123-4567")
}

func TestInvalidFlags(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, "", "scrub", "-o", "xml", "--config", cfg, "--text", "x")
	assert.Error(t, err)

	_, err = execute(t, "", "batch", "--config", cfg, "--input", "x.csv", "--format", "xlsx")
	assert.Error(t, err)

	_, err = execute(t, "", "scrub", "--config", cfg, "--text", "   ")
	assert.Error(t, err)
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "data.scrubbed.csv", defaultOutputPath("data.csv"))
	assert.Equal(t, "dir.v1/data.scrubbed", defaultOutputPath("dir.v1/data"))
	assert.Equal(t, "a/b.scrubbed.parquet", defaultOutputPath("a/b.parquet"))
}
