package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core/attendance"
	"github.com/edutrack/backend/core/user"
)

type attendanceApi struct {
	svc      *attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(app *echo.Echo, jwt echo.MiddlewareFunc, svc *attendance.Service, validate *validator.Validate) {
	api := attendanceApi{svc: svc, validate: validate}

	app.POST("/teacher/attendance", api.record, jwt, roleMiddleware(user.RoleTeacher, user.RoleAdmin))
	app.GET("/admin/attendance_report", api.report, jwt, adminMiddleware)
}

func (api *attendanceApi) record(ctx echo.Context) error {
	var data attendance.NewAttendance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttendance")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	att, err := api.svc.Record(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording attendance")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *attendanceApi) report(ctx echo.Context) error {
	var (
		filter attendance.QueryFilter
		err    error
	)
	if filter.StudentID, err = idQueryParam(ctx, "student_id"); err != nil {
		return err
	}
	if filter.From, err = dateQueryParam(ctx, "from"); err != nil {
		return err
	}
	if filter.To, err = dateQueryParam(ctx, "to"); err != nil {
		return err
	}

	records, err := api.svc.Report(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "reporting attendance")
	}
	return ctx.JSON(http.StatusOK, AttendanceReportResponse{Report: records})
}

type AttendanceReportResponse struct {
	Report []attendance.Attendance `json:"attendance_report"`
}
