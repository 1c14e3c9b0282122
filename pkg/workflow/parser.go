package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSON loads a workflow from JSON and validates it.
func ParseJSON(data []byte) (*Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse json workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ParseYAML loads a workflow from YAML and validates it.
func ParseYAML(data []byte) (*Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse yaml workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// Load reads a workflow definition from a YAML or JSON file, picking
// the parser from the extension.
func Load(path string) (*Workflow, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workflow path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseAuto(data)
	}
}

func parseAuto(data []byte) (*Workflow, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if wf, err := ParseJSON(data); err == nil {
			return wf, nil
		}
	}
	if wf, err := ParseYAML(data); err == nil {
		return wf, nil
	}
	return nil, fmt.Errorf("unsupported workflow format")
}

// MarshalYAML serializes a workflow to YAML.
func MarshalYAML(wf *Workflow) ([]byte, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(wf)
}
