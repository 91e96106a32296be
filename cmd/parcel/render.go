package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// maxCellValues bounds how many tensor elements a table cell shows.
const maxCellValues = 8

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("%w: --output must be %s or %s, got %q", errUsage, formatTable, formatJSON, format)
	}
}

func newTable(w io.Writer, header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))
	return t
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSpecs renders a spec list as "x float32 (None,)" lines.
func formatSpecs(specs []spec.TensorSpec) string {
	lines := make([]string, len(specs))
	for i, s := range specs {
		lines[i] = fmt.Sprintf("%s %s %s", s.Name, s.DType, s.Shape)
	}
	return strings.Join(lines, "\n")
}

// formatValues renders at most maxCellValues elements of t.
func formatValues(t *tensor.Tensor) string {
	elems := t.Elements()
	parts := make([]string, 0, min(len(elems), maxCellValues)+1)
	for i, e := range elems {
		if i == maxCellValues {
			parts = append(parts, fmt.Sprintf("… (%d more)", len(elems)-maxCellValues))
			break
		}
		if s, ok := e.(string); ok {
			parts = append(parts, fmt.Sprintf("%q", s))
		} else {
			parts = append(parts, fmt.Sprint(e))
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
