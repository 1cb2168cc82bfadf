package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	uc "rwa-lending-gateway/internal/usecase/submission"
)

type SubmissionHandler struct {
	uc  *uc.Usecase
	log logrus.FieldLogger
}

func NewSubmissionHandler(u *uc.Usecase, log logrus.FieldLogger) *SubmissionHandler {
	return &SubmissionHandler{uc: u, log: log}
}

type getSubmissionReq struct {
	SubmissionID string `param:"submission_id" validate:"required,hex32"`
}

func (h *SubmissionHandler) ListByAccount(c echo.Context) error {
	var req accountReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	list, err := h.uc.ListByAccount(c.Request().Context(), req.Address, req.Limit)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"account": req.Address, "submissions": list})
}

func (h *SubmissionHandler) Get(c echo.Context) error {
	var req getSubmissionReq
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Get(c.Request().Context(), req.SubmissionID)
	if err != nil {
		return fail(c, h.log, err)
	}
	return c.JSON(http.StatusOK, dto)
}
