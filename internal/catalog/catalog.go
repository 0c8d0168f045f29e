// Package catalog reads the source catalog and writes back last_checked dates.
//
// Two formats are supported, picked by file extension: CSV with a header row
// (source_id,url,title,owner,category,update_frequency,last_checked[,static])
// and YAML with a top-level "sources" list using the same keys.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"

	"github.com/go-playground/validator/v10"
)

var ErrNoSources = errors.New("catalog has no usable sources")

type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

type Catalog struct {
	Path    string
	Format  Format
	Sources []models.Source
}

func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yml", ".yaml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported catalog format %q (want .csv, .yml or .yaml)", filepath.Ext(path))
	}
}

// Load parses the catalog. Rows without source_id or url are dropped silently,
// rows with an invalid url are dropped with a debug line.
func Load(path string) (*Catalog, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var raw []models.Source
	switch format {
	case FormatCSV:
		raw, err = readCSV(path)
	case FormatYAML:
		raw, err = readYAML(path)
	}
	if err != nil {
		return nil, err
	}

	sources := sanitize(raw)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSources, path)
	}

	logger.Debug("catalog %s: %d sources (%d rows read)", path, len(sources), len(raw))
	return &Catalog{Path: path, Format: format, Sources: sources}, nil
}

func sanitize(raw []models.Source) []models.Source {
	validate := validator.New()
	seen := make(map[string]struct{}, len(raw))
	out := make([]models.Source, 0, len(raw))

	for _, src := range raw {
		src.ID = strings.TrimSpace(src.ID)
		src.URL = strings.TrimSpace(src.URL)
		src.UpdateFrequency = models.ParseCadence(string(src.UpdateFrequency))

		if src.ID == "" || src.URL == "" {
			continue
		}
		if err := validate.Struct(src); err != nil {
			logger.Debug("catalog: skipping %s: %v", src.ID, err)
			continue
		}
		if _, err := utils.ParseHTTPURL(src.URL); err != nil {
			logger.Debug("catalog: skipping %s: %v", src.ID, err)
			continue
		}
		if _, dup := seen[src.ID]; dup {
			logger.Warn("catalog: duplicate source_id %s, keeping the first row", src.ID)
			continue
		}
		seen[src.ID] = struct{}{}
		out = append(out, src)
	}
	return out
}

// Filter keeps catalog order. Empty ids and category select everything.
func (c *Catalog) Filter(ids []string, category string) []models.Source {
	want := utils.Set(ids)
	return utils.Filter(c.Sources, func(s models.Source) bool {
		if len(want) > 0 {
			if _, ok := want[s.ID]; !ok {
				return false
			}
		}
		return category == "" || s.Category == category
	})
}

// Unknown returns the requested ids that are not in the catalog.
func (c *Catalog) Unknown(ids []string) []string {
	known := utils.Set(utils.Map(c.Sources, func(s models.Source) string { return s.ID }))
	return utils.Filter(ids, func(id string) bool {
		_, ok := known[id]
		return !ok
	})
}

// MarkChecked sets last_checked=date for ids and rewrites the file atomically.
func (c *Catalog) MarkChecked(ids []string, date string) error {
	if len(ids) == 0 {
		return nil
	}
	set := utils.Set(ids)

	var err error
	switch c.Format {
	case FormatCSV:
		err = rewriteCSV(c.Path, set, date)
	case FormatYAML:
		err = rewriteYAML(c.Path, set, date)
	default:
		err = fmt.Errorf("unsupported catalog format %q", c.Format)
	}
	if err != nil {
		return fmt.Errorf("update catalog %s: %w", c.Path, err)
	}

	for i := range c.Sources {
		if _, ok := set[c.Sources[i].ID]; ok {
			c.Sources[i].LastChecked = date
		}
	}
	return nil
}
