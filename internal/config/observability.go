package config

// TracingConfig holds OTLP trace export configuration.
// See internal/observability for exporter setup.
type TracingConfig struct {
	// Endpoint is the OTLP HTTP collector endpoint (default: localhost:4318)
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment" json:"environment"`
	// ServiceName is the reported service name (default: anchor)
	ServiceName string `mapstructure:"service_name" json:"service_name"`
}
