package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/dataloader/internal/core"
)

// buildMapping combines a mapping file with --map pairs. File entries come
// first, in file order, followed by the pairs in flag order.
func buildMapping(file string, pairs []string) (core.Mapping, error) {
	var entries []core.Entry

	if file != "" {
		m, err := readMappingFile(file)
		if err != nil {
			return core.Mapping{}, err
		}
		entries = append(entries, m.Entries()...)
	}

	for _, p := range pairs {
		src, dst, ok := strings.Cut(p, "=")
		if !ok {
			return core.Mapping{}, core.Validationf(core.CodeInvalidMapping, "--map %q: want source=target", p)
		}
		entries = append(entries, core.Entry{Source: src, Target: dst})
	}

	return core.NewMapping(entries...)
}

// readMappingFile reads a JSON or YAML mapping. Both keep key order.
func readMappingFile(path string) (core.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Mapping{}, fmt.Errorf("read mapping file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return core.ParseMappingJSON(data)
	case ".yaml", ".yml":
		return parseMappingYAML(data)
	default:
		return core.Mapping{}, core.Validationf(core.CodeInvalidMapping,
			"mapping file %s: want .json, .yaml or .yml", filepath.Base(path))
	}
}

// parseMappingYAML decodes a flat YAML mapping of source header to target
// column. It walks the node tree because decoding into a Go map would lose
// key order.
func parseMappingYAML(data []byte) (core.Mapping, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return core.Mapping{}, &core.Error{Kind: core.KindValidation, Code: core.CodeInvalidMapping, Msg: "invalid column mapping", Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return core.Mapping{}, core.Validationf(core.CodeInvalidMapping, "column mapping is empty")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return core.Mapping{}, core.Validationf(core.CodeInvalidMapping, "column mapping must be a YAML mapping")
	}

	entries := make([]core.Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || val.Kind != yaml.ScalarNode {
			return core.Mapping{}, core.Validationf(core.CodeInvalidMapping, "line %d: values must be plain strings", key.Line)
		}
		entries = append(entries, core.Entry{Source: key.Value, Target: val.Value})
	}

	return core.NewMapping(entries...)
}
