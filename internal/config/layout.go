package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rl1809/grocery-inventory/internal/core/store"
)

// LoadLayout reads a shelving layout from a YAML file. An empty path yields
// the default three-aisle shop.
func LoadLayout(path string) (store.Layout, error) {
	if path == "" {
		return store.DefaultLayout(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Layout{}, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

func ParseLayout(data []byte) (store.Layout, error) {
	var l store.Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return store.Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	if len(l.Rows) == 0 {
		return store.Layout{}, fmt.Errorf("layout has no rows")
	}
	return l, nil
}

// MarshalLayout renders l back to YAML.
func MarshalLayout(l store.Layout) ([]byte, error) {
	return yaml.Marshal(l)
}
