package handler

import (
	appevent "github.com/erp/pos/internal/application/event"
	"github.com/gin-gonic/gin"
)

// OutboxHandler lets operators inspect and requeue outbox events
type OutboxHandler struct {
	BaseHandler
	outboxService *appevent.OutboxService
}

// NewOutboxHandler creates a new OutboxHandler
func NewOutboxHandler(outboxService *appevent.OutboxService) *OutboxHandler {
	return &OutboxHandler{outboxService: outboxService}
}

// Stats godoc
// @Summary      Outbox statistics
// @Description  Count outbox entries per status
// @Tags         ops-outbox
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=appevent.OutboxStatsResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ops/outbox/stats [get]
func (h *OutboxHandler) Stats(c *gin.Context) {
	stats, err := h.outboxService.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// ListDead godoc
// @Summary      List dead letters
// @Description  List outbox entries that ran out of retries
// @Tags         ops-outbox
// @Accept       json
// @Produce      json
// @Param        page query int false "Page" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]appevent.OutboxEntryResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ops/outbox/dead [get]
func (h *OutboxHandler) ListDead(c *gin.Context) {
	var filter appevent.DeadLetterFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	paging := filter.Paging()

	entries, total, err := h.outboxService.ListDead(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, paging.Page, paging.PageSize)
}

// Retry godoc
// @Summary      Retry a dead letter
// @Description  Requeue one dead outbox entry
// @Tags         ops-outbox
// @Accept       json
// @Produce      json
// @Param        id path string true "Outbox entry ID" format(uuid)
// @Success      200 {object} dto.Response{data=appevent.OutboxEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ops/outbox/{id}/retry [post]
func (h *OutboxHandler) Retry(c *gin.Context) {
	id, ok := h.parseID(c, "id", "outbox entry ID")
	if !ok {
		return
	}

	entry, err := h.outboxService.Retry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAll godoc
// @Summary      Retry all dead letters
// @Description  Requeue every dead outbox entry
// @Tags         ops-outbox
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=map[string]int}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /ops/outbox/dead/retry [post]
func (h *OutboxHandler) RetryAll(c *gin.Context) {
	count, err := h.outboxService.RetryAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"retried": count})
}
