package catalog

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// expandConfigEnv replaces ${VAR} references in string scalars and reports
// the variables that were not set.
func expandConfigEnv(raw []byte) (string, []string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return "", nil, fmt.Errorf("parse config: %w", err)
	}
	if root.Kind == 0 {
		return "{}", nil, nil
	}

	missing := make(map[string]struct{})
	walkScalars(&root, func(node *yaml.Node) {
		expandScalar(node, missing)
	})

	expanded, err := yaml.Marshal(&root)
	if err != nil {
		return "", nil, fmt.Errorf("encode expanded config: %w", err)
	}
	if len(missing) == 0 {
		return string(expanded), nil, nil
	}
	return string(expanded), slices.Sorted(maps.Keys(missing)), nil
}

func walkScalars(node *yaml.Node, visit func(*yaml.Node)) {
	switch node.Kind {
	case yaml.MappingNode:
		// Keys are never expanded.
		for i := 1; i < len(node.Content); i += 2 {
			walkScalars(node.Content[i], visit)
		}
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			walkScalars(child, visit)
		}
	case yaml.AliasNode:
		if node.Alias != nil {
			walkScalars(node.Alias, visit)
		}
	case yaml.ScalarNode:
		visit(node)
	}
}

func expandScalar(node *yaml.Node, missing map[string]struct{}) {
	if node.Tag != "" && node.Tag != "!!str" {
		return
	}
	if !strings.Contains(node.Value, "$") {
		return
	}
	expanded := os.Expand(node.Value, func(key string) string {
		value, ok := os.LookupEnv(key)
		if !ok {
			missing[key] = struct{}{}
		}
		return value
	})
	if expanded == node.Value {
		return
	}
	// Quoted scalars stay strings; plain ones are re-typed from the expansion.
	if node.Style != 0 {
		node.Tag, node.Value = "!!str", expanded
		return
	}
	node.Tag, node.Value = retagScalar(expanded)
}

func retagScalar(value string) (string, string) {
	if strings.TrimSpace(value) == "" {
		return "!!str", value
	}
	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return "!!str", value
	}
	switch v := parsed.(type) {
	case nil:
		return "!!null", "null"
	case bool:
		return "!!bool", strconv.FormatBool(v)
	case int:
		return "!!int", strconv.Itoa(v)
	case uint64:
		return "!!int", strconv.FormatUint(v, 10)
	case float64:
		return "!!float", strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "!!str", value
	}
}
