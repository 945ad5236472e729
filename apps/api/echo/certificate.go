package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/user"
)

type (
	certificateApi struct {
		svc *certificate.Service
	}

	// verification is the public view of a certificate: no document, no learner id.
	verification struct {
		ID          string    `json:"id"`
		Valid       bool      `json:"valid"`
		LearnerName string    `json:"user_name"`
		CourseTitle string    `json:"course_name"`
		CourseHours int       `json:"course_hours"`
		IssuedAt    time.Time `json:"issue_date"`
	}
)

func registerCertificateAPI(g *echo.Group, auth []echo.MiddlewareFunc, svc *certificate.Service) {
	api := certificateApi{svc: svc}

	cg := g.Group("/certificates")

	// un-authed endpoints
	cg.GET("/:id/verify", api.verify)

	// authed endpoints
	ag := cg.Group("", auth...)
	ag.GET("", api.queryOwn)
	ag.GET("/:id/document", api.document)

	// admin endpoints
	staff := make([]echo.MiddlewareFunc, 0, len(auth)+1)
	staff = append(staff, auth...)
	admin := g.Group("/admin", append(staff, roleMiddleware(user.StaffRoles...))...)
	admin.GET("/certificates", api.query)
	admin.POST("/certificates/:id/regenerate", api.regenerate)
	admin.DELETE("/certificates/:id", api.revoke, roleMiddleware(user.RoleAdmin))
	admin.POST("/courses/:course/certificates", api.issueBatch)
	admin.GET("/courses/:course/stats", api.stats)
}

// Handlers

func (api *certificateApi) verify(ctx echo.Context) error {
	cert, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, verification{
		ID:          cert.ID,
		Valid:       true,
		LearnerName: cert.LearnerName,
		CourseTitle: cert.CourseTitle,
		CourseHours: cert.CourseHours,
		IssuedAt:    cert.IssuedAt,
	})
}

func (api *certificateApi) queryOwn(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	filter, err := bindCertificateFilter(ctx)
	if err != nil {
		return err
	}
	filter.LearnerID = claims.Subject

	certs, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateApi) document(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	cert, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	// only the owner & staff can download the document
	if cert.LearnerID != claims.Subject && !claims.hasAnyRole(user.StaffRoles...) {
		return errHttpNotFound
	}

	doc, err := api.svc.Render(cert)
	if err != nil {
		return errors.Wrap(err, "rendering certificate")
	}
	return ctx.HTML(http.StatusOK, doc)
}

func (api *certificateApi) query(ctx echo.Context) error {
	filter, err := bindCertificateFilter(ctx)
	if err != nil {
		return err
	}
	certs, err := api.svc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	return ctx.JSON(http.StatusOK, certs)
}

func (api *certificateApi) regenerate(ctx echo.Context) error {
	cert, err := api.svc.Regenerate(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "regenerating certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) revoke(ctx echo.Context) error {
	if err := api.svc.Revoke(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "revoking certificate")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *certificateApi) issueBatch(ctx echo.Context) error {
	report, err := api.svc.IssueBatch(ctx.Request().Context(), ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "issuing certificates")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *certificateApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), ctx.Param("course"))
	if err != nil {
		return errors.Wrap(err, "computing certificate stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
