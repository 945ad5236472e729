package certificate

import (
	"fmt"
	"strings"
	"time"

	"github.com/guigasprogramador/oneeduca/core"
)

// Provenance tells whether a certificate is stored durably or only exists in memory.
type Provenance int

const (
	Durable Provenance = iota
	Virtual
)

const virtualIDPrefix = "virtual-"

func (p Provenance) String() string {
	if p == Virtual {
		return "virtual"
	}
	return "durable"
}

func (p Provenance) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Provenance) UnmarshalText(b []byte) error {
	switch string(b) {
	case "durable", "":
		*p = Durable
	case "virtual":
		*p = Virtual
	default:
		return fmt.Errorf("unknown provenance %q", string(b))
	}
	return nil
}

// IsVirtualID reports whether id was generated for a non-persisted certificate.
func IsVirtualID(id string) bool {
	return strings.HasPrefix(id, virtualIDPrefix)
}

// Certificate attests that a learner completed a course.
// LearnerName and CourseTitle are copied at issuance and never re-synced.
type Certificate struct {
	ID          string     `json:"id"`
	LearnerID   string     `json:"user_id"`
	CourseID    string     `json:"course_id"`
	LearnerName string     `json:"user_name"`
	CourseTitle string     `json:"course_name"`
	CourseHours int        `json:"course_hours"`
	IssuedAt    time.Time  `json:"issue_date"`
	ExpiresAt   *time.Time `json:"expiry_date,omitempty"`
	URL         string     `json:"certificate_url,omitempty"`
	Document    string     `json:"certificate_html,omitempty"`
	Provenance  Provenance `json:"provenance"`
}

func (c Certificate) IsVirtual() bool { return c.Provenance == Virtual }

func (c Certificate) Key() Key {
	return Key{LearnerID: c.LearnerID, CourseID: c.CourseID}
}

type (
	QueryFilter struct {
		LearnerID string
		CourseID  string
		Search    string // case-insensitive match on learner name or course title
		Limit     int
		Offset    int
		Ordering  []core.DBOrdering
	}

	Stats struct {
		CourseID             string  `json:"course_id"`
		TotalCertificates    int     `json:"total_certificates"`
		TotalEnrollments     int     `json:"total_enrollments"`
		CompletedEnrollments int     `json:"completed_enrollments"`
		CompletionRate       float64 `json:"completion_rate"`    // completed / enrollments (%)
		CertificationRate    float64 `json:"certification_rate"` // certificates / completed (%)
	}
)
