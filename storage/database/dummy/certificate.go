package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
)

type certificateRepository struct {
	db *DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) query() []certificate.Certificate {
	certs := make([]certificate.Certificate, 0, len(repo.db.certificate.table))
	for _, c := range repo.db.certificate.table {
		certs = append(certs, *c)
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].IssuedAt.After(certs[j].IssuedAt) })
	return certs
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	if err := repo.db.hit(OpCreateCertificate); err != nil {
		return certificate.Certificate{}, err
	}
	t := repo.db.certificate
	t.Lock()
	defer t.Unlock()

	for _, c := range t.table {
		if c.LearnerID == cert.LearnerID && c.CourseID == cert.CourseID {
			return certificate.Certificate{}, certificate.ErrDuplicate
		}
	}
	cert.Provenance = certificate.Durable
	t.table[cert.ID] = &cert
	return cert, nil
}

func (repo *certificateRepository) GetCertificate(_ context.Context, learnerID, courseID string) (certificate.Certificate, error) {
	if err := repo.db.hit(OpGetCertificate); err != nil {
		return certificate.Certificate{}, err
	}
	t := repo.db.certificate
	t.RLock()
	defer t.RUnlock()

	for _, c := range t.table {
		if c.LearnerID == learnerID && c.CourseID == courseID {
			return *c, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetCertificateByID(_ context.Context, id string) (certificate.Certificate, error) {
	t := repo.db.certificate
	t.RLock()
	defer t.RUnlock()

	if c, ok := t.table[id]; ok {
		return *c, nil
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) FilterCertificates(_ context.Context, filter certificate.QueryFilter) ([]certificate.Certificate, error) {
	if err := repo.db.hit(OpFilterCertificate); err != nil {
		return nil, err
	}
	t := repo.db.certificate
	t.RLock()
	defer t.RUnlock()

	search := core.CleanString(filter.Search, true)
	certs := make([]certificate.Certificate, 0)
	for _, c := range repo.query() {
		if filter.LearnerID != "" && c.LearnerID != filter.LearnerID {
			continue
		}
		if filter.CourseID != "" && c.CourseID != filter.CourseID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.LearnerName), search) &&
			!strings.Contains(strings.ToLower(c.CourseTitle), search) {
			continue
		}
		certs = append(certs, c)
	}
	sortCertificates(certs, filter.Ordering)

	if filter.Offset > 0 {
		if filter.Offset >= len(certs) {
			return []certificate.Certificate{}, nil
		}
		certs = certs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(certs) {
		certs = certs[:filter.Limit]
	}
	return certs, nil
}

// certificateFields compares certificates on the fields accepted for ordering.
var certificateFields = map[string]func(a, b certificate.Certificate) int{
	"issue_date":  func(a, b certificate.Certificate) int { return a.IssuedAt.Compare(b.IssuedAt) },
	"user_name":   func(a, b certificate.Certificate) int { return strings.Compare(a.LearnerName, b.LearnerName) },
	"course_name": func(a, b certificate.Certificate) int { return strings.Compare(a.CourseTitle, b.CourseTitle) },
}

// sortCertificates applies the known orderings on top of the default newest-first order.
func sortCertificates(certs []certificate.Certificate, orderings []core.DBOrdering) {
	sort.SliceStable(certs, func(i, j int) bool {
		for _, ord := range orderings {
			cmp, ok := certificateFields[ord.Field]
			if !ok {
				continue
			}
			c := cmp(certs[i], certs[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func (repo *certificateRepository) CountCertificates(_ context.Context, courseID string) (int, error) {
	t := repo.db.certificate
	t.RLock()
	defer t.RUnlock()

	var n int
	for _, c := range t.table {
		if courseID == "" || c.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (repo *certificateRepository) UpdateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	t := repo.db.certificate
	t.Lock()
	defer t.Unlock()

	existing, ok := t.table[cert.ID]
	if !ok {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	existing.IssuedAt = cert.IssuedAt
	existing.ExpiresAt = cert.ExpiresAt
	existing.URL = cert.URL
	existing.Document = cert.Document
	return *existing, nil
}

func (repo *certificateRepository) DeleteCertificate(_ context.Context, id string) error {
	t := repo.db.certificate
	t.Lock()
	defer t.Unlock()

	if _, ok := t.table[id]; !ok {
		return certificate.ErrNotFound
	}
	delete(t.table, id)
	return nil
}
