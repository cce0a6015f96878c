package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mkadiri/kazi/core/assignment"
	"github.com/mkadiri/kazi/core/user"
)

type assignmentApi struct {
	usrSvc *user.Service
	svc    *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, usrSvc *user.Service, svc *assignment.Service) {
	api := assignmentApi{usrSvc: usrSvc, svc: svc}

	ag := g.Group("/assignments", jwt, accessTokenMiddleware())

	// static paths before parameterized ones
	ag.GET("/my-submissions", api.queryMySubmissions, studentMiddleware())
	ag.GET("/students/:studentId/submissions", api.queryStudentSubmissions, adminMiddleware())
	ag.GET("/submissions/:id", api.retrieveSubmission)
	ag.PATCH("/submissions/:id/grade", api.grade, adminMiddleware())

	ag.POST("", api.create, adminMiddleware())
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update, adminMiddleware())
	ag.PATCH("/:id/publish", api.publish, adminMiddleware())
	ag.DELETE("/:id", api.destroy, adminMiddleware())

	ag.POST("/:id/submit", api.submit, studentMiddleware())
	ag.GET("/:id/submissions", api.querySubmissions)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asg, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, AssignmentResponse{Message: "assignment created successfully", Assignment: asg})
}

func (api *assignmentApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asgs, err := api.svc.Query(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if asgs == nil {
		asgs = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, asgs)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asg, err := api.svc.GetByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment by ID")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	asg, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, AssignmentResponse{Message: "assignment updated successfully", Assignment: asg})
}

func (api *assignmentApi) publish(ctx echo.Context) error {
	asg, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing assignment")
	}
	return ctx.JSON(http.StatusOK, AssignmentResponse{Message: "assignment published successfully", Assignment: asg})
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	asg, err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.JSON(http.StatusOK, DeletedAssignmentResponse{
		Message: "assignment and related submissions deleted successfully",
		Assignment: assignment.AssignmentInfo{
			ID:    asg.ID,
			Title: asg.Title,
		},
	})
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	var data assignment.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, SubmissionResponse{Message: "assignment submitted successfully", Submission: sub})
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) queryMySubmissions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	subs, err := api.svc.QueryStudentSubmissions(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying own submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) queryStudentSubmissions(ctx echo.Context) error {
	subs, err := api.svc.QueryStudentSubmissions(ctx.Request().Context(), ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "querying student submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) retrieveSubmission(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.GetSubmissionByID(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding submission by ID")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *assignmentApi) grade(ctx echo.Context) error {
	var data assignment.Grade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Grade")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, SubmissionResponse{Message: "submission graded successfully", Submission: sub})
}

type (
	AssignmentResponse struct {
		Message    string                `json:"message"`
		Assignment assignment.Assignment `json:"assignment"`
	}

	DeletedAssignmentResponse struct {
		Message    string                    `json:"message"`
		Assignment assignment.AssignmentInfo `json:"assignment"`
	}

	SubmissionResponse struct {
		Message    string                `json:"message"`
		Submission assignment.Submission `json:"submission"`
	}
)
