package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/progress"
)

type (
	courseApi struct {
		svc        *course.Service
		calculator *progress.Calculator
		evaluator  *progress.Evaluator
		certSvc    *certificate.Service
		validate   *validator.Validate
	}

	completionRequest struct {
		Completed *bool `json:"completed" validate:"required"`
	}

	progressResponse struct {
		CourseID string `json:"course_id"`
		Progress int    `json:"progress"`
	}

	eligibilityResponse struct {
		CourseID string `json:"course_id"`
		Eligible bool   `json:"eligible"`
	}
)

func registerCourseAPI(
	g *echo.Group,
	auth []echo.MiddlewareFunc,
	svc *course.Service,
	calculator *progress.Calculator,
	evaluator *progress.Evaluator,
	certSvc *certificate.Service,
	validate *validator.Validate,
) {
	api := courseApi{
		svc:        svc,
		calculator: calculator,
		evaluator:  evaluator,
		certSvc:    certSvc,
		validate:   validate,
	}

	cg := g.Group("/courses/:course", auth...)
	cg.GET("", api.retrieve)
	cg.POST("/enroll", api.enroll)
	cg.GET("/progress", api.progress)
	cg.GET("/eligibility", api.eligibility)
	cg.GET("/certificate", api.findCertificate)
	cg.POST("/certificate", api.issueCertificate)

	lg := g.Group("/lessons/:lesson", auth...)
	lg.PUT("/completion", api.markLesson)
}

// Handlers

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.Get(ctx.Request().Context(), ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	enrollment, err := api.svc.Enroll(ctx.Request().Context(), claims.Subject, ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "enrolling learner")
	}
	return ctx.JSON(http.StatusCreated, enrollment)
}

func (api *courseApi) markLesson(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data completionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to completionRequest")
	}
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	courseID, err := api.svc.CourseOfLesson(rctx, ctx.Param("lesson"))
	if err != nil {
		return errors.Wrap(err, "resolving lesson course")
	}
	pct, err := api.calculator.MarkLesson(rctx, claims.Subject, ctx.Param("lesson"), *data.Completed)
	if err != nil {
		return errors.Wrap(err, "marking lesson")
	}
	return ctx.JSON(http.StatusOK, progressResponse{CourseID: courseID, Progress: pct})
}

func (api *courseApi) progress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courseID := ctx.Param("course")
	pct, err := api.calculator.Compute(ctx.Request().Context(), claims.Subject, courseID)
	if err != nil {
		return errors.Wrap(err, "computing progress")
	}
	return ctx.JSON(http.StatusOK, progressResponse{CourseID: courseID, Progress: pct})
}

func (api *courseApi) eligibility(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courseID := ctx.Param("course")
	eligible, err := api.evaluator.IsEligible(ctx.Request().Context(), claims.Subject, courseID)
	if err != nil {
		return errors.Wrap(err, "checking eligibility")
	}
	return ctx.JSON(http.StatusOK, eligibilityResponse{CourseID: courseID, Eligible: eligible})
}

func (api *courseApi) findCertificate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	cert, err := api.certSvc.Find(ctx.Request().Context(), claims.Subject, ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "finding certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *courseApi) issueCertificate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	cert, err := api.certSvc.Issue(ctx.Request().Context(), claims.Subject, ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
