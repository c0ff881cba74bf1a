package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/storemanager/pkg/config"
	"github.com/abgdnv/storemanager/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	NATS       config.NATSConfig       `koanf:"nats"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Metrics    config.MetricsConfig    `koanf:"metrics"`
}

func (c *Config) String() string {
	var b strings.Builder

	b.WriteString(c.HTTPServer.String())

	b.WriteString("\n--- Database ---\n")
	b.WriteString(fmt.Sprintf("  database.driver: %s\n", c.Database.Driver))
	b.WriteString(fmt.Sprintf("  database.url: %s\n", maskURL(c.Database.URL)))
	b.WriteString(fmt.Sprintf("  database.timeout: %s\n", c.Database.Timeout))
	b.WriteString(fmt.Sprintf("  database.migrate: %t\n", c.Database.Migrate))

	b.WriteString("\n--- gRPC ---\n")
	b.WriteString(fmt.Sprintf("  grpc.port: %s\n", c.GRPC.Port))
	b.WriteString(fmt.Sprintf("  grpc.reflection: %t\n", c.GRPC.ReflectionEnabled))

	b.WriteString(c.NATS.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Metrics.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())

	return b.String()
}

// maskURL hides credentials, which precede the last "@" in both postgres URLs and mysql DSNs.
func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	if i := strings.LastIndex(url, "@"); i >= 0 {
		return "****" + url[i:]
	}
	return "****"
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Database,
		&c.Log,
		&c.PProf,
		&c.Shutdown,
		&c.GRPC,
		&c.NATS,
		&c.Telemetry,
		&c.Metrics,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
