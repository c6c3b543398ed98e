package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edutrack/backend/core/homework"
	"github.com/edutrack/backend/core/user"
)

type homeworkApi struct {
	svc      *homework.Service
	users    user.Service
	validate *validator.Validate
}

func registerHomeworkAPI(
	app *echo.Echo,
	jwt echo.MiddlewareFunc,
	svc *homework.Service,
	users user.Service,
	validate *validator.Validate,
) {
	api := homeworkApi{svc: svc, users: users, validate: validate}

	// homework.teacher_id references teachers: admins cannot author homework
	tg := app.Group("/teacher", jwt)
	tg.POST("/assign_homework", api.assign, roleMiddleware(user.RoleTeacher))
	tg.GET("/view_progress/:student_id", api.progress, roleMiddleware(user.RoleTeacher, user.RoleAdmin))

	pg := app.Group("/parent", jwt, roleMiddleware(user.RoleParent, user.RoleAdmin))
	pg.GET("/view_homework/:student_id", api.studentHomework)
	pg.POST("/submit_homework", api.submit)

	app.POST("/admin/upload_results", api.uploadResults, jwt, adminMiddleware)
}

func (api *homeworkApi) assign(ctx echo.Context) error {
	var data homework.NewHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHomework")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	teacherID, err := claims.UserID()
	if err != nil {
		return errUnauthorized
	}

	hw, err := api.svc.Assign(ctx.Request().Context(), teacherID, data)
	if err != nil {
		return errors.Wrap(err, "assigning homework")
	}
	return ctx.JSON(http.StatusCreated, hw)
}

func (api *homeworkApi) progress(ctx echo.Context) error {
	studentID, err := idParam(ctx, "student_id")
	if err != nil {
		return err
	}

	entries, err := api.svc.Progress(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{StudentID: studentID, Progress: entries})
}

func (api *homeworkApi) studentHomework(ctx echo.Context) error {
	studentID, err := idParam(ctx, "student_id")
	if err != nil {
		return err
	}
	if err := guardianCheck(ctx, api.users, studentID); err != nil {
		return err
	}

	hws, err := api.svc.StudentHomework(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "getting student homework")
	}
	return ctx.JSON(http.StatusOK, StudentHomeworkResponse{StudentID: studentID, Homework: hws})
}

func (api *homeworkApi) submit(ctx echo.Context) error {
	var data homework.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := guardianCheck(ctx, api.users, data.StudentID); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting homework")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *homeworkApi) uploadResults(ctx echo.Context) error {
	var data homework.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.RecordGrade(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording grade")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

type (
	ProgressResponse struct {
		StudentID int64                    `json:"student_id"`
		Progress  []homework.ProgressEntry `json:"progress"`
	}

	StudentHomeworkResponse struct {
		StudentID int64                       `json:"student_id"`
		Homework  []homework.AssignedHomework `json:"homework"`
	}
)
