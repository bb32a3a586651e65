package builtin

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kbukum/runemaster/errors"
	"github.com/kbukum/runemaster/task"
)

var csvQuerySchema = task.Schema{
	{ID: "columns", Name: "Columns", Type: task.FieldInput, Optional: true},
	{ID: "query", Name: "Query [specific language]", Type: task.FieldInput},
}

// CSVQueryTask runs a query over CSV datasets. The only statement is
//
//	select distinct <col>[,<col>...]
//
// which projects the columns and keeps each distinct row once, sorted.
type CSVQueryTask struct{}

var _ task.Transform = (*CSVQueryTask)(nil)

func (q *CSVQueryTask) Tag() string         { return TagCSVQuery }
func (q *CSVQueryTask) Kind() task.Kind     { return task.KindTransform }
func (q *CSVQueryTask) Schema() task.Schema { return csvQuerySchema }

// Apply unions the inputs and evaluates the query. With "columns" bound
// every input row is data; otherwise the first row of each input is its
// header and all headers must agree.
func (q *CSVQueryTask) Apply(_ context.Context, t *task.Task, inputs []task.Dataset) (*task.Dataset, error) {
	if len(inputs) == 0 {
		return nil, errors.InvalidInput("inputs", "csv query needs at least one upstream dataset")
	}
	rawQuery, _ := t.Value("query")
	selected, err := parseQuery(rawQuery)
	if err != nil {
		return nil, err
	}

	var header []string
	if cols, ok := t.Value("columns"); ok && strings.TrimSpace(cols) != "" {
		header = splitList(cols)
	}
	explicit := header != nil

	var rows [][]string
	for _, in := range inputs {
		r := csv.NewReader(bytes.NewReader(in.Data))
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		if err != nil {
			return nil, errors.InvalidInput("input", fmt.Sprintf("%s: %v", in.FileName, err))
		}
		if !explicit && len(records) > 0 {
			if header == nil {
				header = records[0]
			} else if !slices.Equal(header, records[0]) {
				return nil, errors.InvalidInput("input", fmt.Sprintf("%s: header %v does not match %v", in.FileName, records[0], header))
			}
			records = records[1:]
		}
		rows = append(rows, records...)
	}

	idx := make([]int, len(selected))
	for i, col := range selected {
		idx[i] = slices.Index(header, col)
		if idx[i] < 0 {
			return nil, errors.InvalidInput("query", fmt.Sprintf("unknown column %q", col))
		}
	}

	seen := make(map[string]bool)
	var out [][]string
	for _, row := range rows {
		proj := make([]string, len(idx))
		for i, j := range idx {
			if j < len(row) {
				proj[i] = row[j]
			}
		}
		key := strings.Join(proj, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, proj)
	}
	slices.SortStableFunc(out, compareRows)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(selected); err != nil {
		return nil, errors.Internal(err)
	}
	if err := w.WriteAll(out); err != nil {
		return nil, errors.Internal(err)
	}
	return &task.Dataset{FileName: inputs[0].FileName, Data: buf.Bytes()}, nil
}

// parseQuery returns the selected columns of a "select distinct" statement.
func parseQuery(query string) ([]string, error) {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil, errors.InvalidInput("query", "empty query")
	}
	if !strings.EqualFold(fields[0], "select") {
		return nil, errors.InvalidInput("query", fmt.Sprintf("unknown operator %q", fields[0]))
	}
	if len(fields) < 2 || !strings.EqualFold(fields[1], "distinct") {
		return nil, errors.InvalidInput("query", "only select distinct is supported")
	}
	cols := splitList(strings.Join(fields[2:], " "))
	if len(cols) == 0 {
		return nil, errors.InvalidInput("query", "no columns selected")
	}
	return cols, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// compareRows orders rows column by column. Numbers sort before text and
// compare by value.
func compareRows(a, b []string) int {
	for i := range a {
		if c := compareCells(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareCells(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
