package pos

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/types"
)

// Handler exposes the POS operations over HTTP for terminal frontends.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	log      logger.Logger
}

// NewHandler creates an HTTP handler around the POS service.
func NewHandler(svc *Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		log:      log.Named("pos.http"),
	}
}

// Register mounts the POS routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	g := e.Group("/pos/algorand")
	g.POST("/qr_code", h.qrCode)
	g.POST("/verify_payment", h.verifyPayment)
	g.POST("/check_transaction", h.checkTransaction)
}

func (h *Handler) qrCode(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	uri, err := PaymentURI(&req)
	if err != nil {
		return payErrorResponse(c, err)
	}
	dataURL, err := QRCodeDataURL(&req, DefaultQRSize)
	if err != nil {
		return payErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"uri":     uri,
		"qr_code": dataURL,
	})
}

type verifyRequest struct {
	TxID string `json:"txId" validate:"required"`
	Request
}

func (h *Handler) verifyPayment(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.svc.VerifyPayment(c.Request().Context(), req.TxID, &req.Request)
	if err != nil {
		return payErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type checkRequest struct {
	TxID string `json:"txId" validate:"required"`
}

func (h *Handler) checkTransaction(c echo.Context) error {
	var req checkRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "malformed request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	status, round, err := h.svc.CheckTransaction(c.Request().Context(), req.TxID)
	if err != nil {
		return payErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":         status,
		"confirmedRound": round,
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// payErrorResponse maps library errors onto HTTP statuses: client mistakes
// are 400s, upstream node trouble is a 502.
func payErrorResponse(c echo.Context, err error) error {
	code := types.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case types.ErrInvalidAddress, types.ErrTransactionBuild:
		status = http.StatusBadRequest
	case types.ErrNetwork:
		status = http.StatusBadGateway
	}
	return c.JSON(status, map[string]string{"error": err.Error(), "code": code})
}
