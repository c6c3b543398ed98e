package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/edutrack/backend/core/user"
)

// roleMiddleware lets through callers holding one of roles.
func roleMiddleware(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.HasRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var adminMiddleware = roleMiddleware(user.RoleAdmin)

// guardianCheck fails with ErrStudentNotFound when the caller is a Parent who is not the student's guardian.
// Other roles pass through.
func guardianCheck(ctx echo.Context, svc user.Service, studentID int64) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !claims.IsParent {
		return nil
	}
	parentID, err := claims.UserID()
	if err != nil {
		return errUnauthorized
	}
	std, err := svc.GetStudent(ctx.Request().Context(), studentID)
	if err != nil {
		return err
	}
	if !std.HasGuardian(parentID) {
		return user.ErrStudentNotFound
	}
	return nil
}
