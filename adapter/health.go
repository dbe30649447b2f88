// Package adapter wires the control bus exchange into external systems:
// health endpoints and OpenTelemetry instrumentation.
package adapter

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/scbus/server-shm/pkg/servershm"
)

// NewHealthHandler returns an HTTP health handler whose liveness check fails
// once the given client's attachment has gone stale (server destroyed or
// restarted). Processes that keep long-lived attachments expose this so an
// orchestrator restarts them instead of letting them read a dead segment.
func NewHealthHandler(client *servershm.Client) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("bus-attachment", func() error {
		if !client.Live() {
			return fmt.Errorf("control bus attachment is stale")
		}
		return nil
	})
	return h
}
