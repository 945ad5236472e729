package progress

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/course"
)

var NowFunc = time.Now // mockable

// CompletionHandler is notified when a learner reaches 100% on a course and is eligible for a certificate.
type CompletionHandler interface {
	HandleCompletion(ctx context.Context, learnerID, courseID string)
}

// Calculator derives a learner's course progress from lesson completions.
type Calculator struct {
	repo   course.Repository
	logger core.Logger

	eligibility *Evaluator
	handler     CompletionHandler

	writes *recorder
}

func NewCalculator(repo course.Repository, logger core.Logger) *Calculator {
	return &Calculator{repo: repo, logger: logger, writes: newRecorder(repo, logger)}
}

// OnCompletion registers the evaluator run at 100% and the handler notified when it confirms eligibility.
// The evaluator then stores its progress corrections through the calculator's ordered writes.
func (calc *Calculator) OnCompletion(eval *Evaluator, h CompletionHandler) {
	calc.eligibility = eval
	calc.handler = h
	if eval != nil {
		eval.writes = calc.writes
	}
}

// Compute returns round(100 * completed / total) over the lessons of the course, and records it on the enrollment.
// The write does not block the caller and its failure does not affect the returned value.
// Writes of a (learner, course) pair are applied in order; the stored value is never older than the last write.
func (calc *Calculator) Compute(ctx context.Context, learnerID, courseID string) (int, error) {
	pct, err := aggregate(ctx, calc.repo, learnerID, courseID)
	if err != nil {
		return 0, err
	}

	calc.writes.record(ctx, learnerID, courseID)

	if pct == 100 && calc.eligibility != nil {
		eligible, err := calc.eligibility.IsEligible(ctx, learnerID, courseID)
		if err != nil {
			calc.logger.Warn("checking eligibility after completion", "error", err, "learner", learnerID, "course", courseID)
		} else if eligible && calc.handler != nil {
			calc.handler.HandleCompletion(ctx, learnerID, courseID)
		}
	}
	return pct, nil
}

// MarkLesson records the lesson as completed (or not) for the learner and recomputes the progress of its course.
func (calc *Calculator) MarkLesson(ctx context.Context, learnerID, lessonID string, completed bool) (int, error) {
	courseID, err := course.CourseOfLesson(ctx, calc.repo, lessonID)
	if err != nil {
		return 0, errors.Wrap(err, "resolving lesson course")
	}

	rec := course.LessonCompletion{
		ID:        uuid.NewString(),
		LearnerID: learnerID,
		LessonID:  lessonID,
		Completed: completed,
	}
	if completed {
		now := NowFunc().UTC()
		rec.CompletedAt = &now
	}
	if _, err = calc.repo.UpsertCompletion(ctx, rec); err != nil {
		return 0, errors.Wrap(err, "saving lesson completion")
	}
	return calc.Compute(ctx, learnerID, courseID)
}

// Flush waits for the pending enrollment writes.
func (calc *Calculator) Flush() {
	calc.writes.flush()
}

func aggregate(ctx context.Context, repo course.Repository, learnerID, courseID string) (int, error) {
	lessonIDs, err := courseLessons(ctx, repo, courseID)
	if err != nil {
		return 0, err
	}
	return completedPercentage(ctx, repo, learnerID, lessonIDs)
}

// courseLessons returns the ids of every lesson of every module of the course.
func courseLessons(ctx context.Context, repo course.Repository, courseID string) ([]string, error) {
	modules, err := repo.ListModules(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing modules")
	}
	if len(modules) == 0 {
		return nil, nil
	}
	moduleIDs := make([]string, 0, len(modules))
	for _, m := range modules {
		moduleIDs = append(moduleIDs, m.ID)
	}

	lessons, err := repo.ListLessons(ctx, moduleIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "listing lessons")
	}
	lessonIDs := make([]string, 0, len(lessons))
	for _, l := range lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}
	return lessonIDs, nil
}

func completedPercentage(ctx context.Context, repo course.Repository, learnerID string, lessonIDs []string) (int, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	completions, err := repo.ListCompletions(ctx, learnerID, lessonIDs...)
	if err != nil {
		return 0, errors.Wrap(err, "listing lesson completions")
	}
	done := make(map[string]struct{}, len(completions))
	for _, c := range completions {
		if c.Completed {
			done[c.LessonID] = struct{}{}
		}
	}
	return Percentage(len(done), len(lessonIDs)), nil
}

// Percentage is round(100 * completed / total), 0 when total is 0.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(completed) / float64(total)))
	if pct > 100 {
		return 100
	}
	return pct
}
