package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadInstrumentsFromFile reads instrument ids from a .json array or a text file
// with one id per line (# starts a comment). Unknown extensions try JSON first.
func LoadInstrumentsFromFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file %s: %w", path, err)
	}

	var ids []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(content, &ids); err != nil {
			return nil, fmt.Errorf("parse instruments JSON: %w", err)
		}
	case ".txt":
		ids = parseLines(string(content))
	default:
		if err := json.Unmarshal(content, &ids); err != nil {
			ids = parseLines(string(content))
		}
	}

	out := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func parseLines(s string) []string {
	var ids []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			ids = append(ids, line)
		}
	}
	return ids
}
