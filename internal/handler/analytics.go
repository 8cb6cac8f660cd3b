package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/astrosearch/api/internal/service"
	"github.com/astrosearch/api/pkg/response"
)

type AnalyticsHandler struct {
	service *service.SearchService
}

func NewAnalyticsHandler(svc *service.SearchService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// Analytics handles GET /analytics. The snapshot is global and anonymized,
// so no authorization applies.
func (h *AnalyticsHandler) Analytics(c *fiber.Ctx) error {
	snapshot, err := h.service.Analytics(c.Context())
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, snapshot)
}

// Usage handles GET /usage
func (h *AnalyticsHandler) Usage(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"status":             "success",
		"privacy":            "results are scoped to the submitting user",
		"search_endpoint":    "POST /search",
		"results_endpoint":   "GET /results/{job_id}",
		"analytics_endpoint": "GET /analytics",
		"header_required":    "X-User-ID",
	})
}
