package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// loadStructuredFile reads a YAML or TOML document and flattens it into APP_* keys:
//
//	db:
//	  driver: mysql     -> APP_DB_DRIVER=mysql
//	log_output: [stdout, file] -> APP_LOG_OUTPUT=stdout,file
func loadStructuredFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := map[string]string{}
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(k), "-", "_"))
		if prefix != "" {
			name = prefix + "_" + name
		}
		switch v := node[k].(type) {
		case map[string]any:
			flatten(name, v, out)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[envKey(name)] = strings.Join(parts, ",")
		case nil:
		default:
			out[envKey(name)] = fmt.Sprint(v)
		}
	}
}

func envKey(name string) string {
	if strings.HasPrefix(name, "APP_") {
		return name
	}
	return "APP_" + name
}
