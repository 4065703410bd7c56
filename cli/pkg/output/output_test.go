package output

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess(t *testing.T) {
	output := captureStdout(func() {
		Success("Submitted batch %s with %d records", "batch-7", 12)
	})

	assert.Contains(t, output, "✓")
	assert.Contains(t, output, "Submitted batch batch-7 with 12 records")
}

func TestError(t *testing.T) {
	output := captureStderr(func() {
		Error("Failed to reach %s: %v", "engine", io.ErrUnexpectedEOF)
	})

	assert.Contains(t, output, "✗")
	assert.Contains(t, output, "Failed to reach engine")
}

func TestInfo(t *testing.T) {
	output := captureStdout(func() {
		Info("Linting %d files", 3)
	})

	assert.Contains(t, output, "Linting 3 files")
	assert.NotContains(t, output, "✓")
	assert.NotContains(t, output, "✗")
}

func TestWarn(t *testing.T) {
	output := captureStdout(func() {
		Warn("Quarantine rate is %d%%", 42)
	})

	assert.Contains(t, output, "⚠")
	assert.Contains(t, output, "Quarantine rate is 42%")
}

func TestJSON_Simple(t *testing.T) {
	data := map[string]interface{}{
		"batch_id": "batch-7",
		"clean":    42,
	}

	output := captureStdout(func() {
		err := JSON(data)
		assert.NoError(t, err)
	})

	var parsed map[string]interface{}
	err := json.Unmarshal([]byte(output), &parsed)
	require.NoError(t, err)

	assert.Equal(t, "batch-7", parsed["batch_id"])
	assert.Equal(t, float64(42), parsed["clean"])
}

func TestJSON_Indented(t *testing.T) {
	data := map[string]interface{}{
		"result": map[string]interface{}{
			"batch_id": "batch-7",
			"clean":    10,
		},
	}

	output := captureStdout(func() {
		err := JSON(data)
		assert.NoError(t, err)
	})

	// Two-space indent
	assert.Contains(t, output, "  \"result\":")
	assert.Contains(t, output, "    \"batch_id\":")
}

func TestJSON_Struct(t *testing.T) {
	type result struct {
		BatchID     string `json:"batch_id"`
		Clean       int    `json:"clean"`
		Quarantined int    `json:"quarantined"`
	}

	data := result{BatchID: "batch-9", Clean: 8, Quarantined: 2}

	output := captureStdout(func() {
		err := JSON(data)
		assert.NoError(t, err)
	})

	var parsed result
	err := json.Unmarshal([]byte(output), &parsed)
	require.NoError(t, err)

	assert.Equal(t, "batch-9", parsed.BatchID)
	assert.Equal(t, 8, parsed.Clean)
	assert.Equal(t, 2, parsed.Quarantined)
}

func TestNewTable(t *testing.T) {
	table := NewTable("Batch", "Status")

	assert.NotNil(t, table)
	assert.Equal(t, []string{"Batch", "Status"}, table.headers)
	assert.Empty(t, table.rows)
}

func TestTable_AddRow(t *testing.T) {
	table := NewTable("Col1", "Col2")

	table.AddRow("val1", "val2")
	table.AddRow("val3", "val4")

	assert.Len(t, table.rows, 2)
	assert.Equal(t, []string{"val1", "val2"}, table.rows[0])
	assert.Equal(t, []string{"val3", "val4"}, table.rows[1])
}

func TestTable_Render_Empty(t *testing.T) {
	table := NewTable("Kind", "Versions")

	output := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, output, "Kind")
	assert.Contains(t, output, "Versions")
	assert.Contains(t, output, "----")
}

func TestTable_Render_WithRows(t *testing.T) {
	table := NewTable("Batch", "Clean", "Quarantined")
	table.AddRow("batch-1", "40", "2")
	table.AddRow("batch-2", "17", "0")

	output := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, output, "Batch")
	assert.Contains(t, output, "----")
	assert.Contains(t, output, "batch-1")
	assert.Contains(t, output, "40")
	assert.Contains(t, output, "batch-2")
	assert.Contains(t, output, "17")
}

func TestTable_Render_ColumnAlignment(t *testing.T) {
	table := NewTable("ID", "VeryLongHeader")
	table.AddRow("a", "b")
	table.AddRow("long-value", "c")

	output := captureStdout(func() {
		table.Render()
	})

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.GreaterOrEqual(t, len(lines), 4)

	// Width follows the widest cell in each column
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[1], strings.Repeat("-", len("long-value")))
	assert.Contains(t, lines[1], strings.Repeat("-", len("VeryLongHeader")))
	assert.Contains(t, lines[2], "a")
	assert.Contains(t, lines[3], "long-value")
}

func TestTable_Render_SingleColumn(t *testing.T) {
	table := NewTable("Status")
	table.AddRow("clean")
	table.AddRow("quarantined")

	output := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, output, "Status")
	assert.Contains(t, output, "clean")
	assert.Contains(t, output, "quarantined")
}

func TestTable_Render_EmptyStrings(t *testing.T) {
	table := NewTable("Name", "Value")
	table.AddRow("period_start", "")
	table.AddRow("", "2025-03-01")

	output := captureStdout(func() {
		table.Render()
	})

	assert.Contains(t, output, "period_start")
	assert.Contains(t, output, "2025-03-01")
}
