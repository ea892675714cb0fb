package config

// IntakeConfig defines configuration for the execution engine.
type IntakeConfig struct {
	// SourcesFile is the YAML file holding the per-client intake
	// configurations. It is watched for changes at run time.
	SourcesFile             string  `json:"sources_file,omitempty" yaml:"sources_file,omitempty"`
	CallTimeoutSecs         int     `json:"call_timeout_secs,omitempty" yaml:"call_timeout_secs,omitempty" validate:"omitempty,gte=1"`
	MaxConcurrentExecutions int     `json:"max_concurrent_executions,omitempty" yaml:"max_concurrent_executions,omitempty" validate:"omitempty,gte=1"`
	MaxMemoryUsedPercent    float64 `json:"max_memory_used_percent,omitempty" yaml:"max_memory_used_percent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// NewDefaultIntakeConfig creates default intake configuration.
func NewDefaultIntakeConfig() IntakeConfig {
	return IntakeConfig{
		SourcesFile:             DefaultIntakeSourcesFile,
		CallTimeoutSecs:         DefaultIntakeCallTimeoutSecs,
		MaxConcurrentExecutions: DefaultIntakeMaxConcurrent,
		MaxMemoryUsedPercent:    DefaultIntakeMaxMemoryUsedPercent,
	}
}
