package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminRoleGuard は管理系ルートをrole=ADMINのトークンだけに絞る。
// AuthJWT が先に通ってroleをcontextに入れている前提。
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxUserRoleKey).(string)
			if role == "" {
				//roleが無い＝認証を通っていない
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if role != "ADMIN" {
				return c.JSON(http.StatusForbidden, errorJSON("admin only"))
			}
			return next(c)
		}
	}
}
