package certificate

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/guigasprogramador/oneeduca/core/course"
)

// BatchReport summarizes a batch issuance; partial success is the expected outcome.
type BatchReport struct {
	CourseID  string            `json:"course_id"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Virtual   int               `json:"virtual"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"` // learnerID -> error
}

func (r *BatchReport) record(learnerID string, cert Certificate, err error) {
	if err != nil {
		r.Failed++
		if r.Errors == nil {
			r.Errors = make(map[string]string)
		}
		r.Errors[learnerID] = err.Error()
		return
	}
	r.Succeeded++
	if cert.IsVirtual() {
		r.Virtual++
	}
}

// IssueBatch issues certificates for every completed enrollment of the course, with bounded concurrency.
// A failing learner does not stop the batch; ctx cancellation stops scheduling new learners.
func (svc *Service) IssueBatch(ctx context.Context, courseID string) (BatchReport, error) {
	defer svc.metrics.observeBatch(time.Now())

	enrollments, err := svc.courses.ListEnrollments(ctx, course.EnrollmentFilter{CourseID: courseID, MinProgress: 100})
	if err != nil {
		return BatchReport{CourseID: courseID}, errors.Wrap(err, "listing completed enrollments")
	}

	report := BatchReport{CourseID: courseID, Total: len(enrollments)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(svc.batchLimit)
	for _, e := range enrollments {
		if ctx.Err() != nil {
			mu.Lock()
			report.record(e.LearnerID, Certificate{}, ctx.Err())
			mu.Unlock()
			continue
		}
		learnerID := e.LearnerID
		g.Go(func() error {
			cert, err := svc.Issue(ctx, learnerID, courseID)
			mu.Lock()
			report.record(learnerID, cert, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	svc.logger.Info("batch issuance finished", "course", courseID, "total", report.Total,
		"succeeded", report.Succeeded, "virtual", report.Virtual, "failed", report.Failed)
	return report, nil
}

// SweepCompleted runs IssueBatch over every course.
func (svc *Service) SweepCompleted(ctx context.Context) ([]BatchReport, error) {
	courses, err := svc.courses.ListCourses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}
	reports := make([]BatchReport, 0, len(courses))
	for _, c := range courses {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		report, err := svc.IssueBatch(ctx, c.ID)
		if err != nil {
			svc.logger.Warn("sweeping course", "error", err, "course", c.ID)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
