package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	service ports.AccountService
}

func NewAccountHandler(service ports.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// Get returns the caller's account and current balance.
//
// @Summary      Current account
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Success      200  {object}  accountResponse
// @Failure      401  {object}  errorResponse
// @Router       /v1/account [get]
func (h *AccountHandler) Get(c echo.Context) error {
	caller, err := currentAccount(c)
	if err != nil {
		return err
	}

	account, err := h.service.Get(c.Request().Context(), caller.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAccountResponse(account))
}

// Usage lists the caller's generations, newest first.
//
// @Summary      Usage history
// @Tags         account
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        page   query     int  false  "Page number"  default(1)
// @Param        limit  query     int  false  "Page size"    default(20)
// @Success      200    {object}  usagePageResponse
// @Failure      401    {object}  errorResponse
// @Router       /v1/account/usage [get]
func (h *AccountHandler) Usage(c echo.Context) error {
	caller, err := currentAccount(c)
	if err != nil {
		return err
	}

	page, limit := pageParams(c)
	out, err := h.service.Usage(c.Request().Context(), caller.ID, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsagePageResponse(out))
}

// Purchase adds one of the fixed credit packages to the caller's balance.
//
// @Summary      Buy a credit package
// @Description  Packages are 50, 120 or 300 credits. Disabled unless self-service purchases are enabled.
// @Tags         account
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     ApiKeyAuth
// @Param        body  body      purchaseRequest  true  "Package size"
// @Success      200   {object}  balanceResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/account/credits/purchase [post]
func (h *AccountHandler) Purchase(c echo.Context) error {
	caller, err := currentAccount(c)
	if err != nil {
		return err
	}

	var req purchaseRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	balance, err := h.service.PurchaseCredits(c.Request().Context(), caller.ID, req.Package)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, balanceResponse{Credits: balance})
}
