package management

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"datasync/internal/logger"
	"datasync/pkg/errors"
)

const UserIDHeader = "X-User-ID"

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		integrations := v1.Group("/integrations")
		{
			integrations.GET("", h.ListIntegrations)
			integrations.GET("/:id", h.GetIntegration)
			integrations.GET("/:id/history", h.GetHistory)
			integrations.POST("/:id/execute", h.ExecuteIntegration)
		}
	}
}

// ListIntegrations godoc
// @Summary      List integrations
// @Description  Get every integration configuration with its last and next run
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Success      200  {array}   IntegrationSummary
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /integrations [get]
func (h *Handler) ListIntegrations(c *gin.Context) {
	items, err := h.Service.ListIntegrations(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetIntegration godoc
// @Summary      Get an integration by ID
// @Description  Get a full integration configuration including mappings and history
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Integration ID"
// @Success      200  {object}  IntegrationDetail
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /integrations/{id} [get]
func (h *Handler) GetIntegration(c *gin.Context) {
	detail, err := h.Service.GetIntegration(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetHistory godoc
// @Summary      Get integration run history
// @Description  Get the most recent execution logs, newest first
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Integration ID"
// @Success      200  {array}   integration.ExecutionLog
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /integrations/{id}/history [get]
func (h *Handler) GetHistory(c *gin.Context) {
	history, err := h.Service.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// ExecuteIntegration godoc
// @Summary      Execute an integration now
// @Description  Run the integration once. The invoking user is the fallback owner for created projects.
// @Tags         integrations
// @Accept       json
// @Produce      json
// @Param        id       path      string          true   "Integration ID"
// @Param        request  body      ExecuteRequest  false  "Invoking user"
// @Success      200      {object}  reconcile.Result
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      409      {object}  errors.ErrorResponse
// @Failure      502      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /integrations/{id}/execute [post]
func (h *Handler) ExecuteIntegration(c *gin.Context) {
	var req ExecuteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
			return
		}
	}
	if req.UserID == "" {
		req.UserID = c.GetHeader(UserIDHeader)
	}

	result, err := h.Service.ExecuteIntegration(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
