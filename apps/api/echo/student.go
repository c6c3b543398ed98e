package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core/user"
)

type studentApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerStudentAPI(app *echo.Echo, jwt echo.MiddlewareFunc, svc user.Service, validate *validator.Validate) {
	api := studentApi{svc: svc, validate: validate}

	sg := app.Group("/students", jwt)
	sg.POST("", api.enroll, adminMiddleware)
	sg.GET("", api.query, roleMiddleware(user.RoleAdmin, user.RoleTeacher, user.RoleParent))
	sg.GET("/:id", api.retrieve, roleMiddleware(user.RoleAdmin, user.RoleTeacher, user.RoleParent))

	app.PUT("/admin/students/:id/parent", api.assignParent, jwt, adminMiddleware)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.svc.EnrollStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

// query lists students. Parents only ever see their own children.
func (api *studentApi) query(ctx echo.Context) error {
	var filter user.StudentFilter
	if err := bindQuery(ctx, &filter); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.IsParent {
		if filter.ParentID, err = claims.UserID(); err != nil {
			return errUnauthorized
		}
	}

	students, err := api.svc.QueryStudents(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []user.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	if err := guardianCheck(ctx, api.svc, id); err != nil {
		return err
	}
	std, err := api.svc.GetStudent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) assignParent(ctx echo.Context) error {
	id, err := idParam(ctx, "id")
	if err != nil {
		return err
	}
	var data AssignParentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignParentRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	std, err := api.svc.AssignParent(ctx.Request().Context(), id, data.ParentID)
	if err != nil {
		return errors.Wrap(err, "assigning parent")
	}
	return ctx.JSON(http.StatusOK, std)
}

type AssignParentRequest struct {
	ParentID int64 `json:"parent_id" validate:"required,gt=0"`
}
