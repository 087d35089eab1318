package alert

import "time"

// ModuleConfig holds configuration for the Alert module.
type ModuleConfig struct {
	EvaluationTimeout   time.Duration `mapstructure:"evaluation_timeout"`
	BreachRetention     time.Duration `mapstructure:"breach_retention"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance_interval"`

	// MaxDataPoints caps the series length accepted by the evaluation
	// endpoints.
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// DefaultConfig returns sensible defaults for the Alert module.
func DefaultConfig() ModuleConfig {
	return ModuleConfig{
		EvaluationTimeout:   30 * time.Second,
		BreachRetention:     30 * 24 * time.Hour,
		MaintenanceInterval: 1 * time.Hour,
		MaxDataPoints:       10000,
	}
}
