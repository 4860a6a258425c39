package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/virtushot/photoshoot-api/internal/api/middleware"
	"github.com/virtushot/photoshoot-api/internal/core/domain"
)

// currentAccount returns the caller injected by the Auth middleware. Its
// absence means the route was registered without Auth.
func currentAccount(c echo.Context) (*domain.Account, error) {
	account, _ := c.Get(middleware.AccountKey).(*domain.Account)
	if account == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication")
	}
	return account, nil
}

// pageParams reads ?page= and ?limit=; invalid values fall back to the service defaults.
func pageParams(c echo.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	return page, limit
}
