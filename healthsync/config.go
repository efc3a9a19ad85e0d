// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package healthsync

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableConfig names the fully-qualified analytical tables and document
// collections per record class. It is externalized configuration: the core
// never hardcodes table names.
type TableConfig struct {
	// Analytical tables, fully qualified as "project.dataset.table".
	Meals           string
	ActivityDaily   string
	BodyComposition string
	Profiles        string
	CalorieDiff     string

	// Document collections.
	MealsCollection   string
	ProfileCollection string
}

// FileConfig is the on-disk YAML configuration for store wiring.
type FileConfig struct {
	App struct {
		Name string `yaml:"name"`
	} `yaml:"app"`
	Analytical struct {
		Project string `yaml:"project"`
		Dataset string `yaml:"dataset"`
		Tables  struct {
			Meals           string `yaml:"meals"`
			ActivityDaily   string `yaml:"activityDaily"`
			BodyComposition string `yaml:"bodyComposition"`
			Profiles        string `yaml:"profiles"`
			CalorieDiff     string `yaml:"calorieDiff"`
		} `yaml:"tables"`
	} `yaml:"analytical"`
	Document struct {
		DatabaseURL string `yaml:"databaseURL"`
		Collections struct {
			Meals   string `yaml:"meals"`
			Profile string `yaml:"profile"`
		} `yaml:"collections"`
	} `yaml:"document"`
}

// LoadConfig reads a YAML config file and applies environment overrides:
// BQ_PROJECT_ID, BQ_DATASET and DOCUMENT_DATABASE_URL take precedence over the
// file so deployments can keep credentials and endpoints out of it.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if v := os.Getenv("BQ_PROJECT_ID"); v != "" {
		cfg.Analytical.Project = v
	}
	if v := os.Getenv("BQ_DATASET"); v != "" {
		cfg.Analytical.Dataset = v
	}
	if v := os.Getenv("DOCUMENT_DATABASE_URL"); v != "" {
		cfg.Document.DatabaseURL = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *FileConfig) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "healthsync"
	}
	if c.Document.Collections.Meals == "" {
		c.Document.Collections.Meals = "meals"
	}
	if c.Document.Collections.Profile == "" {
		c.Document.Collections.Profile = "profile"
	}
}

// TableConfig resolves the file config into fully-qualified table names.
func (c *FileConfig) TableConfig() TableConfig {
	qualify := func(table string) string {
		if table == "" {
			return ""
		}
		return fmt.Sprintf("%s.%s.%s", c.Analytical.Project, c.Analytical.Dataset, table)
	}
	return TableConfig{
		Meals:             qualify(c.Analytical.Tables.Meals),
		ActivityDaily:     qualify(c.Analytical.Tables.ActivityDaily),
		BodyComposition:   qualify(c.Analytical.Tables.BodyComposition),
		Profiles:          qualify(c.Analytical.Tables.Profiles),
		CalorieDiff:       qualify(c.Analytical.Tables.CalorieDiff),
		MealsCollection:   c.Document.Collections.Meals,
		ProfileCollection: c.Document.Collections.Profile,
	}
}
