package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"rwa-lending-gateway/internal/adapter/middleware"
	uc "rwa-lending-gateway/internal/usecase/origination"
)

type OriginationHandler struct {
	uc  *uc.Usecase
	log logrus.FieldLogger
}

func NewOriginationHandler(u *uc.Usecase, log logrus.FieldLogger) *OriginationHandler {
	return &OriginationHandler{uc: u, log: log}
}

type selectTokenReq struct {
	TokenID string `json:"token_id" validate:"max=128"`
}

// Amount is kept raw: the form shows whatever was typed and an
// unparseable value only zeroes the LTV.
type setAmountReq struct {
	Amount string `json:"amount" validate:"max=64"`
}

type accountReq struct {
	Address string `param:"address" validate:"required,address"`
	Limit   int    `query:"limit" validate:"gte=0,lte=100"`
}

// Open mounts the form for the connected account.
func (h *OriginationHandler) Open(c echo.Context) error {
	res, err := h.uc.Open(c.Request().Context(), middleware.Account(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *OriginationHandler) View(c echo.Context) error {
	v, err := h.uc.View(c.Request().Context(), middleware.Account(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *OriginationHandler) Close(c echo.Context) error {
	h.uc.Close(c.Request().Context(), middleware.Account(c))
	return c.NoContent(http.StatusNoContent)
}

func (h *OriginationHandler) Select(c echo.Context) error {
	var req selectTokenReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	v, err := h.uc.Select(c.Request().Context(), middleware.Account(c), req.TokenID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *OriginationHandler) SetAmount(c echo.Context) error {
	var req setAmountReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	v, err := h.uc.SetAmount(c.Request().Context(), middleware.Account(c), req.Amount)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Lock and TakeLoan answer 200 with ok=false when a guard or the chain
// rejected the request; the notification carries the reason.
func (h *OriginationHandler) Lock(c echo.Context) error {
	res, err := h.uc.LockCollateral(c.Request().Context(), middleware.Account(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OriginationHandler) TakeLoan(c echo.Context) error {
	res, err := h.uc.TakeLoan(c.Request().Context(), middleware.Account(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *OriginationHandler) DismissValuation(c echo.Context) error {
	v, err := h.uc.DismissValuation(c.Request().Context(), middleware.Account(c))
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *OriginationHandler) Guide(c echo.Context) error {
	return c.JSON(http.StatusOK, uc.LoanGuide())
}

// Collateral lists any account's tokens straight from the chain.
func (h *OriginationHandler) Collateral(c echo.Context) error {
	var req accountReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	tokens, err := h.uc.Collateral(c.Request().Context(), req.Address)
	if err != nil {
		h.log.WithError(err).WithField("account", req.Address).Error("fetch collateral tokens")
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "chain unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]any{"account": req.Address, "tokens": tokens})
}

func (h *OriginationHandler) Notifications(c echo.Context) error {
	var req accountReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	list, err := h.uc.Notifications(c.Request().Context(), req.Address, req.Limit)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"account": req.Address, "notifications": list})
}
