package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
)

const (
	colID          = "source_id"
	colURL         = "url"
	colTitle       = "title"
	colOwner       = "owner"
	colCategory    = "category"
	colFrequency   = "update_frequency"
	colLastChecked = "last_checked"
	colStatic      = "static"
)

const utf8BOM = "\ufeff"

type csvTable struct {
	header []string
	rows   [][]string
	bom    bool
}

func readCSVTable(path string) (csvTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return csvTable{}, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}

	var t csvTable
	if rest, ok := bytes.CutPrefix(data, []byte(utf8BOM)); ok {
		t.bom = true
		data = rest
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	t.header, err = r.Read()
	if err == io.EOF {
		return csvTable{}, fmt.Errorf("%w: %s is empty", ErrNoSources, path)
	}
	if err != nil {
		return csvTable{}, fmt.Errorf("failed to read catalog header %s: %w", path, err)
	}
	for i := range t.header {
		t.header[i] = strings.TrimSpace(t.header[i])
	}

	if t.rows, err = r.ReadAll(); err != nil {
		return csvTable{}, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return t, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	return idx
}

func readCSV(path string) ([]models.Source, error) {
	t, err := readCSVTable(path)
	if err != nil {
		return nil, err
	}
	idx := columnIndex(t.header)
	if _, ok := idx[colID]; !ok {
		return nil, fmt.Errorf("catalog %s: missing %q column", path, colID)
	}
	if _, ok := idx[colURL]; !ok {
		return nil, fmt.Errorf("catalog %s: missing %q column", path, colURL)
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]models.Source, 0, len(t.rows))
	for _, row := range t.rows {
		static, _ := strconv.ParseBool(field(row, colStatic))
		out = append(out, models.Source{
			ID:              field(row, colID),
			URL:             field(row, colURL),
			Title:           field(row, colTitle),
			Owner:           field(row, colOwner),
			Category:        field(row, colCategory),
			UpdateFrequency: models.Cadence(field(row, colFrequency)),
			LastChecked:     field(row, colLastChecked),
			Static:          static,
		})
	}
	return out, nil
}

// rewriteCSV keeps every column and row as read, only last_checked changes.
// A leading BOM is written back.
func rewriteCSV(path string, ids map[string]struct{}, date string) error {
	t, err := readCSVTable(path)
	if err != nil {
		return err
	}
	header, rows := t.header, t.rows
	idx := columnIndex(header)
	idCol, ok := idx[colID]
	if !ok {
		return fmt.Errorf("missing %q column", colID)
	}
	lcCol, ok := idx[colLastChecked]
	if !ok {
		header = append(header, colLastChecked)
		lcCol = len(header) - 1
	}

	for i, row := range rows {
		if idCol >= len(row) {
			continue
		}
		if _, hit := ids[strings.TrimSpace(row[idCol])]; !hit {
			continue
		}
		for len(row) <= lcCol {
			row = append(row, "")
		}
		row[lcCol] = date
		rows[i] = row
	}

	var buf bytes.Buffer
	if t.bom {
		buf.WriteString(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return utils.WriteFileAtomic(path+".tmp", path, &buf, perm)
}
