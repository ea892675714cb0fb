package config

// MetricsConfig defines configuration for the Prometheus listener.
type MetricsConfig struct {
	Enabled    bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// NewDefaultMetricsConfig creates default metrics configuration.
func NewDefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:    true,
		ListenAddr: DefaultMetricsListenAddr,
	}
}
