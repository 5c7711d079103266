package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"jornada/internal/domain"
)

// Config models jornada.yml: the reporting time zone, the static
// department registry and the API server settings.
type Config struct {
	Timezone string `yaml:"timezone"`
	Server   struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
	Departments []DepartmentSchema `yaml:"departments"`
}

// DepartmentSchema declares one department's routing namespace and its
// classification axes. Departments differ only in this schema; the
// engine itself is department-agnostic.
type DepartmentSchema struct {
	Namespace string       `yaml:"namespace"`
	Slug      string       `yaml:"slug"`
	Label     string       `yaml:"label"`
	Axes      []AxisSchema `yaml:"axes"`
}

// AxisSchema names one level of the work-breakdown hierarchy.
type AxisSchema struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// Load reads and validates config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in registry used when no config file is given.
func Default() *Config {
	cfg := &Config{Timezone: "America/Sao_Paulo"}
	cfg.Server.Addr = ":8080"
	cfg.Server.BasePath = "/v0"
	cfg.Departments = []DepartmentSchema{
		{
			Namespace: "engobras",
			Slug:      "engobras",
			Label:     "Engenharia de Obras",
			Axes: []AxisSchema{
				{Key: "milestone", Label: "Marco"},
				{Key: "general", Label: "Atividade Geral"},
				{Key: "specific", Label: "Atividade Específica"},
			},
		},
		{
			Namespace: "epe",
			Slug:      "epe",
			Label:     "Engenharia de Painéis Elétricos",
			Axes: []AxisSchema{
				{Key: "general", Label: "Atividade Geral"},
				{Key: "panel_size", Label: "Tamanho do painel"},
			},
		},
	}
	return cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("config.timezone: %w", err)
		}
	}
	if len(c.Departments) == 0 {
		return fmt.Errorf("config.departments is required")
	}
	slugs := map[string]bool{}
	namespaces := map[string]bool{}
	for _, d := range c.Departments {
		if d.Slug == "" || d.Namespace == "" {
			return fmt.Errorf("department slug and namespace are required")
		}
		if slugs[d.Slug] {
			return fmt.Errorf("duplicate department slug %s", d.Slug)
		}
		if namespaces[d.Namespace] {
			return fmt.Errorf("duplicate department namespace %s", d.Namespace)
		}
		slugs[d.Slug] = true
		namespaces[d.Namespace] = true
		if len(d.Axes) == 0 || len(d.Axes) > domain.MaxAxes {
			return fmt.Errorf("department %s must declare between 1 and %d axes", d.Slug, domain.MaxAxes)
		}
		keys := map[string]bool{}
		for _, ax := range d.Axes {
			if ax.Key == "" {
				return fmt.Errorf("department %s has an axis without a key", d.Slug)
			}
			if keys[ax.Key] {
				return fmt.Errorf("department %s repeats axis key %s", d.Slug, ax.Key)
			}
			keys[ax.Key] = true
		}
	}
	return nil
}

// DepartmentBySlug looks a department schema up by its slug.
func (c *Config) DepartmentBySlug(slug string) (DepartmentSchema, bool) {
	for _, d := range c.Departments {
		if d.Slug == slug {
			return d, true
		}
	}
	return DepartmentSchema{}, false
}

// DepartmentByNamespace looks a department schema up by routing namespace.
func (c *Config) DepartmentByNamespace(ns string) (DepartmentSchema, bool) {
	for _, d := range c.Departments {
		if d.Namespace == ns {
			return d, true
		}
	}
	return DepartmentSchema{}, false
}

// AxisLabels returns the configured axis display labels in order.
func (d DepartmentSchema) AxisLabels() []string {
	labels := make([]string, len(d.Axes))
	for i, ax := range d.Axes {
		labels[i] = ax.Label
	}
	return labels
}
