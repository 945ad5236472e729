package progress

import (
	"context"

	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/course"
)

// CertificateFinder reports whether a certificate already exists for the pair.
type CertificateFinder interface {
	HasCertificate(ctx context.Context, learnerID, courseID string) (bool, error)
}

// Evaluator decides whether a learner currently qualifies for a course certificate.
type Evaluator struct {
	repo   course.Repository
	certs  CertificateFinder
	logger core.Logger

	writes *recorder // set by Calculator.OnCompletion; corrections are written inline when nil
}

func NewEvaluator(repo course.Repository, certs CertificateFinder, logger core.Logger) *Evaluator {
	return &Evaluator{repo: repo, certs: certs, logger: logger}
}

// SetCertificateFinder replaces the finder; the certificate service depends on the evaluator and vice-versa.
func (eval *Evaluator) SetCertificateFinder(certs CertificateFinder) {
	eval.certs = certs
}

// IsEligible is true when a certificate exists or the progress is 100.
// A stale enrollment progress is recomputed and corrected. Missing enrollments
// and courses without lessons are not eligible.
func (eval *Evaluator) IsEligible(ctx context.Context, learnerID, courseID string) (bool, error) {
	if eval.certs != nil {
		exists, err := eval.certs.HasCertificate(ctx, learnerID, courseID)
		if err != nil {
			return false, errors.Wrap(err, "checking existing certificate")
		}
		if exists {
			return true, nil
		}
	}

	enrollment, err := eval.repo.FindEnrollment(ctx, learnerID, courseID)
	if err != nil {
		if errors.Is(err, course.ErrEnrollmentNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "finding enrollment")
	}

	lessonIDs, err := courseLessons(ctx, eval.repo, courseID)
	if err != nil {
		return false, errors.Wrap(err, "listing course lessons")
	}
	if len(lessonIDs) == 0 {
		return false, nil
	}
	if enrollment.IsComplete() {
		return true, nil
	}

	pct, err := completedPercentage(ctx, eval.repo, learnerID, lessonIDs)
	if err != nil {
		return false, errors.Wrap(err, "recomputing progress")
	}
	if pct < 100 {
		return false, nil
	}

	eval.logger.Info("correcting stale enrollment progress", "learner", learnerID, "course", courseID, "from", enrollment.Progress)
	if eval.writes != nil {
		eval.writes.record(ctx, learnerID, courseID)
	} else if err = eval.repo.UpdateEnrollmentProgress(ctx, learnerID, courseID, 100); err != nil {
		eval.logger.Warn("correcting stale enrollment progress", "error", err, "learner", learnerID, "course", courseID)
	}
	return true, nil
}
