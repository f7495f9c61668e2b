package base

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by the -format flag.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidFormat reports whether f is a known output format.
func ValidFormat(f string) bool {
	switch strings.ToLower(f) {
	case FormatText, FormatJSON, FormatYAML:
		return true
	}
	return false
}

// Encode renders v as JSON or YAML.
func Encode(format string, v interface{}) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case FormatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\n"), nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}
