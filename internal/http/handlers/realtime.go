package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{log: log.With("handler", "RealtimeHandler"), hub: hub}
}

// GET /api/tenants/:id/generation-runs/stream
func (h *RealtimeHandler) Stream(c *gin.Context) {
	tenantID, ok := uuidParam(c, "id", "invalid_tenant_id")
	if !ok {
		return
	}
	client := h.hub.NewSSEClient(ctxutil.CallerID(c.Request.Context()))
	h.hub.AddChannel(client, realtime.TenantChannel(tenantID))
	h.log.Debug("SSE stream open", "tenant_id", tenantID, "client_id", client.ID)
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
