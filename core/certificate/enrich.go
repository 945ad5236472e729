package certificate

import (
	"context"
	"regexp"
	"strconv"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/user"
)

// placeholders used when display data cannot be resolved
const (
	DefaultLearnerName = "Aluno"
	DefaultCourseTitle = "Curso"
	DefaultCourseHours = 40
)

var hoursRegex = regexp.MustCompile(`(?i)(\d+)\s*h`)

// enrich builds the certificate of the pair with denormalized display data. It never fails.
func (svc *Service) enrich(ctx context.Context, learnerID, courseID string) Certificate {
	cert := Certificate{
		LearnerID:   learnerID,
		CourseID:    courseID,
		LearnerName: svc.learnerName(ctx, learnerID),
		CourseTitle: DefaultCourseTitle,
		CourseHours: DefaultCourseHours,
	}

	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		svc.logger.Warn("resolving course for certificate, using placeholders", "error", err, "course", courseID)
		return cert
	}
	if title := core.CleanString(c.Title); title != "" {
		cert.CourseTitle = title
	}
	cert.CourseHours = ParseHours(c.Duration)
	return cert
}

// learnerName falls back from the authenticated identity, to the profile, to DefaultLearnerName.
// The identity is only trusted when it is the learner's own.
func (svc *Service) learnerName(ctx context.Context, learnerID string) string {
	if id, ok := core.IdentityFromContext(ctx); ok && id.ID == learnerID {
		for _, name := range []string{id.Name, id.FullName} {
			if name = core.CleanString(name); name != "" {
				return name
			}
		}
	}

	if svc.profiles != nil {
		profile, err := svc.profiles.GetProfileByID(ctx, learnerID)
		if err == nil {
			if name := profile.DisplayName(); name != "" {
				return name
			}
		} else {
			svc.logger.Warn("resolving learner profile, using placeholder", "error", err, "learner", learnerID)
		}
	}

	if id, ok := core.IdentityFromContext(ctx); ok && id.ID == learnerID {
		if name := user.NameFromEmail(id.Email); name != "" {
			return name
		}
	}
	return DefaultLearnerName
}

// ParseHours reads the workload from a course duration such as "40h" or "12 H".
func ParseHours(duration string) int {
	m := hoursRegex.FindStringSubmatch(duration)
	if len(m) < 2 {
		return DefaultCourseHours
	}
	hours, err := strconv.Atoi(m[1])
	if err != nil || hours <= 0 {
		return DefaultCourseHours
	}
	return hours
}
