package course

import "time"

type (
	Course struct {
		ID          string    `json:"id" db:"id"`
		Title       string    `json:"title" db:"title"`
		Description string    `json:"description" db:"description"`
		Duration    string    `json:"duration" db:"duration"` // free text, e.g. "40h" or "12 horas"
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	Module struct {
		ID       string `json:"id" db:"id"`
		CourseID string `json:"course_id" db:"course_id"`
		Title    string `json:"title" db:"title"`
		Position int    `json:"position" db:"position"`
	}

	Lesson struct {
		ID       string `json:"id" db:"id"`
		ModuleID string `json:"module_id" db:"module_id"`
		Title    string `json:"title" db:"title"`
		Position int    `json:"position" db:"position"`
	}

	// Enrollment is unique per (learner, course).
	Enrollment struct {
		ID         string    `json:"id" db:"id"`
		LearnerID  string    `json:"user_id" db:"user_id"`
		CourseID   string    `json:"course_id" db:"course_id"`
		Progress   int       `json:"progress" db:"progress"` // 0..100
		EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
	}

	// LessonCompletion is unique per (learner, lesson).
	LessonCompletion struct {
		ID          string     `json:"id" db:"id"`
		LearnerID   string     `json:"user_id" db:"user_id"`
		LessonID    string     `json:"lesson_id" db:"lesson_id"`
		Completed   bool       `json:"completed" db:"completed"`
		CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	}

	EnrollmentFilter struct {
		CourseID    string
		LearnerID   string
		MinProgress int
	}
)

func (e Enrollment) IsComplete() bool { return e.Progress >= 100 }
