package installer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// serversKey is the section of the auxiliary config file holding server
// entries.
const serversKey = "mcpServers"

// loadAuxConfig reads the auxiliary config file into a generic document.
// Extension decides the format: .toml is table-based, everything else is
// treated as JSON. An absent file yields an empty document.
func loadAuxConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	doc := map[string]any{}
	if isTOMLPath(path) {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// writeAuxConfig rewrites the auxiliary config file with a trailing newline
func writeAuxConfig(path string, doc map[string]any) error {
	var data []byte
	var err error

	if isTOMLPath(path) {
		data, err = toml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// auxServers pulls the server section out of a document
func auxServers(doc map[string]any) map[string]any {
	if section, ok := doc[serversKey].(map[string]any); ok {
		return section
	}
	return map[string]any{}
}

func isTOMLPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
