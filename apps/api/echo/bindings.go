package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
)

var (
	orderingParam = "ordering"
	maxPageSize   = 100

	errInvalidPageParam = "must be a non-negative integer"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindCertificateFilter reads `user`, `course`, `search`, `limit`, `offset` & `ordering` query params.
// A limit or offset that is not a non-negative integer is a *core.ValidationError.
func bindCertificateFilter(ctx echo.Context) (certificate.QueryFilter, error) {
	var ord Ordering
	ord.Bind(ctx)

	filter := certificate.QueryFilter{
		LearnerID: core.CleanString(ctx.QueryParam("user")),
		CourseID:  core.CleanString(ctx.QueryParam("course")),
		Search:    core.CleanString(ctx.QueryParam("search")),
		Ordering:  ord.Orderings,
	}

	var fldErrs []core.FieldError
	pageParam := func(name string) int {
		raw := strings.TrimSpace(ctx.QueryParam(name))
		if raw == "" {
			return 0
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fldErrs = append(fldErrs, core.FieldError{Field: name, Error: errInvalidPageParam})
			return 0
		}
		return n
	}
	filter.Limit = pageParam("limit")
	filter.Offset = pageParam("offset")
	if fldErrs != nil {
		return certificate.QueryFilter{}, core.NewValidationError(nil, fldErrs...)
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	return filter, nil
}
