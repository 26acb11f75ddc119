package realtime

import (
	"fmt"

	"github.com/google/uuid"
)

type SSEEvent string

const (
	SSEEventGenerationRunCreated  SSEEvent = "GenerationRunCreated"
	SSEEventGenerationRunProgress SSEEvent = "GenerationRunProgress"
	SSEEventGenerationRunFailed   SSEEvent = "GenerationRunFailed"
	SSEEventGenerationRunDone     SSEEvent = "GenerationRunDone"
	SSEEventGenerationRunCanceled SSEEvent = "GenerationRunCanceled"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// TenantChannel is the channel every run update of a tenant is published on.
func TenantChannel(tenantID uuid.UUID) string {
	return fmt.Sprintf("tenant:%s:generation", tenantID)
}
