package seed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads a seed file from disk.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the seed file. ${VAR} references are expanded
// from the environment so proxy credentials can stay out of the file.
func (l *Loader) Load() (*File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	data = []byte(os.Expand(string(data), os.Getenv))

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	for i, u := range f.Users {
		if strings.TrimSpace(u.Key) == "" {
			return nil, fmt.Errorf("seed user #%d has no key", i+1)
		}
	}
	return &f, nil
}
