package handler

import (
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// 紹介コードのHTTP
type ReferralHandler struct {
	uc *usecase.ReferralUsecase
}

// DI
func NewReferralHandler(uc *usecase.ReferralUsecase) *ReferralHandler {
	return &ReferralHandler{uc: uc}
}

func (h *ReferralHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	auth := middleware.AuthJWT(cfg)

	// クリックは未ログインでも届く
	e.POST("/referrals/:code/click", h.click)

	g := e.Group("/referrals")
	g.Use(auth)

	g.POST("", h.generate)
	g.GET("/stats", h.stats)
	g.GET("/rewards", h.rewards)
	g.POST("/:code/signup", h.signup)
}

func (h *ReferralHandler) generate(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	out, err := h.uc.GenerateCode(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// 不正なコードでも204。ここで攻撃者にヒントを返さない。
func (h *ReferralHandler) click(c echo.Context) error {
	h.uc.RecordClick(c.Request().Context(), c.Param("code"))
	return c.NoContent(http.StatusNoContent)
}

func (h *ReferralHandler) signup(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	h.uc.RecordSignup(c.Request().Context(), c.Param("code"), userID)
	return c.NoContent(http.StatusNoContent)
}

func (h *ReferralHandler) stats(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	out, err := h.uc.GetStats(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ReferralHandler) rewards(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: usecase.CodeUnauthorized})
	}

	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page", Code: usecase.CodeValidation})
		}
		page = p
	}

	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Code: usecase.CodeValidation})
		}
		limit = l
	}

	out, err := h.uc.ListRewards(c.Request().Context(), userID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
