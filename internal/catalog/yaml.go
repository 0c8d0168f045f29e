package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"

	"gopkg.in/yaml.v3"
)

type yamlCatalog struct {
	Sources []models.Source `yaml:"sources"`
}

func readYAML(path string) ([]models.Source, error) {
	var doc yamlCatalog
	if err := utils.FileReader(path, utils.FileTypeYAML, &doc); err != nil {
		return nil, err
	}
	return doc.Sources, nil
}

// rewriteYAML edits the node tree so comments and unknown keys survive.
func rewriteYAML(path string, ids map[string]struct{}, date string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fmt.Errorf("%s: not a YAML document", path)
	}

	list := mappingValue(root.Content[0], "sources")
	if list == nil || list.Kind != yaml.SequenceNode {
		return fmt.Errorf("%s: missing 'sources' list", path)
	}

	for _, item := range list.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		id := mappingValue(item, colID)
		if id == nil {
			continue
		}
		if _, hit := ids[strings.TrimSpace(id.Value)]; !hit {
			continue
		}
		setScalar(item, colLastChecked, date)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return utils.WriteFileAtomic(path+".tmp", path, &buf, perm)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setScalar(m *yaml.Node, key, value string) {
	if v := mappingValue(m, key); v != nil {
		v.Kind = yaml.ScalarNode
		v.Tag = "!!str"
		v.Value = value
		v.Style = 0
		v.Content = nil
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}
