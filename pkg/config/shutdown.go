package config

import (
	"fmt"
	"strings"
	"time"
)

// MaxShutdownTimeout bounds how long the servers may drain in-flight requests on stop.
const MaxShutdownTimeout = 5 * time.Minute

// ShutdownConfig is the grace period given to each server and to the telemetry flush on stop.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  shutdown.timeout: %s\n", c.Timeout))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	if c.Timeout > MaxShutdownTimeout {
		return fmt.Errorf("shutdown timeout %s exceeds %s", c.Timeout, MaxShutdownTimeout)
	}
	return nil
}
