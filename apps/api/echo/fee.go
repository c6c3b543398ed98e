package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core/fee"
	"github.com/edutrack/backend/core/user"
)

type feeApi struct {
	svc      *fee.Service
	users    user.Service
	validate *validator.Validate
}

func registerFeeAPI(app *echo.Echo, jwt echo.MiddlewareFunc, svc *fee.Service, users user.Service, validate *validator.Validate) {
	api := feeApi{svc: svc, users: users, validate: validate}

	app.POST("/admin/fees", api.create, jwt, adminMiddleware)

	pg := app.Group("/parent", jwt, roleMiddleware(user.RoleParent, user.RoleAdmin))
	pg.POST("/payments", api.recordPayment)
	pg.GET("/fees/:student_id", api.statement)
}

func (api *feeApi) create(ctx echo.Context) error {
	var data fee.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *feeApi) recordPayment(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := guardianCheck(ctx, api.users, data.StudentID); err != nil {
		return err
	}

	// admins record payments on behalf of the guardian
	var payerID int64
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsParent {
		if payerID, err = claims.UserID(); err != nil {
			return errUnauthorized
		}
	}

	st, err := api.svc.RecordPayment(ctx.Request().Context(), payerID, data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *feeApi) statement(ctx echo.Context) error {
	studentID, err := idParam(ctx, "student_id")
	if err != nil {
		return err
	}
	if err := guardianCheck(ctx, api.users, studentID); err != nil {
		return err
	}

	st, err := api.svc.Statement(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting statement")
	}
	return ctx.JSON(http.StatusOK, st)
}
