package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

// AdminHandler exposes client management. Routes are mounted behind
// RequireRole(admin).
type AdminHandler struct {
	service ports.AdminService
}

func NewAdminHandler(service ports.AdminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// ListClients
//
// @Summary      List client accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page number"  default(1)
// @Param        limit  query     int  false  "Page size"    default(20)
// @Success      200    {object}  clientPageResponse
// @Failure      401    {object}  errorResponse
// @Failure      403    {object}  errorResponse
// @Router       /v1/admin/clients [get]
func (h *AdminHandler) ListClients(c echo.Context) error {
	page, limit := pageParams(c)
	out, err := h.service.ListClients(c.Request().Context(), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toClientPageResponse(out))
}

// CreateClient provisions a client and returns its raw API key once.
//
// @Summary      Create a client account
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createClientRequest  true  "Client details"
// @Success      201   {object}  provisionResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/admin/clients [post]
func (h *AdminHandler) CreateClient(c echo.Context) error {
	var req createClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	out, err := h.service.CreateClient(c.Request().Context(), ports.CreateClientInput{
		Email:       req.Email,
		Name:        req.Name,
		Password:    req.Password,
		Credits:     req.Credits,
		CreditLimit: req.CreditLimit,
		Status:      domain.AccountStatus(req.Status),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, provisionResponse{APIKey: out.APIKey, Account: toAccountResponse(out.Account)})
}

// UpdateClient
//
// @Summary      Update a client account
// @Description  Changes name, credit limit or status. Credits are changed through the credits endpoint only.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Account ID"
// @Param        body  body      updateClientRequest  true  "Fields to change"
// @Success      200   {object}  accountResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/admin/clients/{id} [patch]
func (h *AdminHandler) UpdateClient(c echo.Context) error {
	var req updateClientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	in := ports.UpdateClientInput{Name: req.Name, CreditLimit: req.CreditLimit}
	if req.Status != nil {
		status := domain.AccountStatus(*req.Status)
		in.Status = &status
	}

	account, err := h.service.UpdateClient(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// AddCredits
//
// @Summary      Grant credits to a client
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string            true  "Account ID"
// @Param        body  body      addCreditsRequest  true  "Amount"
// @Success      200   {object}  balanceResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/admin/clients/{id}/credits [post]
func (h *AdminHandler) AddCredits(c echo.Context) error {
	var req addCreditsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	balance, err := h.service.AddCredits(c.Request().Context(), c.Param("id"), req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Credits: balance})
}

// RotateAPIKey
//
// @Summary      Rotate a client's API key
// @Description  The previous key stops working immediately.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Account ID"
// @Success      200  {object}  provisionResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/admin/clients/{id}/api-key [post]
func (h *AdminHandler) RotateAPIKey(c echo.Context) error {
	out, err := h.service.RotateAPIKey(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, provisionResponse{APIKey: out.APIKey, Account: toAccountResponse(out.Account)})
}

// ClientUsage
//
// @Summary      A client's usage history
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Account ID"
// @Param        page   query     int     false  "Page number"  default(1)
// @Param        limit  query     int     false  "Page size"    default(20)
// @Success      200    {object}  usagePageResponse
// @Failure      404    {object}  errorResponse
// @Router       /v1/admin/clients/{id}/usage [get]
func (h *AdminHandler) ClientUsage(c echo.Context) error {
	page, limit := pageParams(c)
	out, err := h.service.ClientUsage(c.Request().Context(), c.Param("id"), page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsagePageResponse(out))
}

// Overview
//
// @Summary      Dashboard figures
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  overviewResponse
// @Router       /v1/admin/overview [get]
func (h *AdminHandler) Overview(c echo.Context) error {
	o, err := h.service.Overview(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, overviewResponse{
		Clients:            o.Clients,
		ActiveClients:      o.ActiveClients,
		CreditsOutstanding: o.CreditsOutstanding,
		Generations:        o.Generations,
	})
}
