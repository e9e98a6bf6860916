package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds the engine parameters. Defaults come from the environment;
// a YAML file named by TUNING_FILE may override any of them.
type Tuning struct {
	Hebbian     HebbianTuning     `yaml:"hebbian"`
	Maintenance MaintenanceTuning `yaml:"maintenance"`
}

type HebbianTuning struct {
	LearningRate float64       `yaml:"learning_rate"`
	Window       time.Duration `yaml:"window"`
}

type MaintenanceTuning struct {
	Interval            time.Duration `yaml:"interval"`
	LinkDecayRate       float64       `yaml:"link_decay_rate"`
	ActivationDecayRate float64       `yaml:"activation_decay_rate"`
	PruneThreshold      float64       `yaml:"prune_threshold"`
	AccessRetentionDays int           `yaml:"access_retention_days"`
	ProjectsPerSecond   float64       `yaml:"projects_per_second"`
	BreakerMaxFailures  uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout"`
}

// TuningFromEnv builds a Tuning from the env accessors.
func TuningFromEnv() Tuning {
	return Tuning{
		Hebbian: HebbianTuning{
			LearningRate: HebbianLearningRate(),
			Window:       HebbianWindow(),
		},
		Maintenance: MaintenanceTuning{
			Interval:            MaintenanceInterval(),
			LinkDecayRate:       LinkDecayRate(),
			ActivationDecayRate: ActivationDecayRate(),
			PruneThreshold:      PruneThreshold(),
			AccessRetentionDays: AccessRetentionDays(),
			ProjectsPerSecond:   MaintenanceProjectsPerSecond(),
			BreakerMaxFailures:  BreakerMaxFailures(),
			BreakerTimeout:      BreakerTimeout(),
		},
	}
}

// LoadTuning returns the env tuning overlaid with the YAML file at path.
// Keys missing from the file keep their env value. An empty path skips
// the file.
func LoadTuning(path string) (Tuning, error) {
	t := TuningFromEnv()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return t, nil
}
