package assistant

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/telemeds/telemeds/pkg/apperror"
)

type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

// RegisterRoutes mounts the chat route. mw is applied to it alone,
// typically a rate limit.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	api.POST("/chatbot", h.Chat, mw...)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return apperror.Validation(apperror.CodeInvalidRequest, msgMessageRequired)
	}
	reply, err := h.gw.Ask(c.Request().Context(), req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, chatResponse{Response: reply.Text})
}
