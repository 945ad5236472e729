package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/storage/database"
)

const certificateColumns = `id, user_id, course_id, user_name, course_name, course_hours,
	issue_date, expiry_date, certificate_url, certificate_html`

var certificateOrderings = map[string]string{
	"issue_date":  "issue_date",
	"user_name":   "user_name",
	"course_name": "course_name",
}

type certificateRow struct {
	ID          string         `db:"id"`
	LearnerID   string         `db:"user_id"`
	CourseID    string         `db:"course_id"`
	LearnerName string         `db:"user_name"`
	CourseTitle string         `db:"course_name"`
	CourseHours int            `db:"course_hours"`
	IssuedAt    time.Time      `db:"issue_date"`
	ExpiresAt   sql.NullTime   `db:"expiry_date"`
	URL         sql.NullString `db:"certificate_url"`
	Document    sql.NullString `db:"certificate_html"`
}

func newCertificateRow(c certificate.Certificate) certificateRow {
	row := certificateRow{
		ID:          c.ID,
		LearnerID:   c.LearnerID,
		CourseID:    c.CourseID,
		LearnerName: c.LearnerName,
		CourseTitle: c.CourseTitle,
		CourseHours: c.CourseHours,
		IssuedAt:    c.IssuedAt,
		URL:         sql.NullString{String: c.URL, Valid: c.URL != ""},
		Document:    sql.NullString{String: c.Document, Valid: c.Document != ""},
	}
	if c.ExpiresAt != nil {
		row.ExpiresAt = sql.NullTime{Time: *c.ExpiresAt, Valid: true}
	}
	return row
}

func (r certificateRow) toCertificate() certificate.Certificate {
	c := certificate.Certificate{
		ID:          r.ID,
		LearnerID:   r.LearnerID,
		CourseID:    r.CourseID,
		LearnerName: r.LearnerName,
		CourseTitle: r.CourseTitle,
		CourseHours: r.CourseHours,
		IssuedAt:    r.IssuedAt.UTC(),
		URL:         r.URL.String,
		Document:    r.Document.String,
		Provenance:  certificate.Durable,
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time.UTC()
		c.ExpiresAt = &t
	}
	return c
}

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(db *sqlx.DB) certificate.Repository {
	return &certificateRepository{db: db}
}

func (repo *certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	row := newCertificateRow(cert)
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO certificates (`+certificateColumns+`)
		VALUES (:id, :user_id, :course_id, :user_name, :course_name, :course_hours,
			:issue_date, :expiry_date, :certificate_url, :certificate_html)`, row)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return certificate.Certificate{}, certificate.ErrDuplicate
		}
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return row.toCertificate(), nil
}

func (repo *certificateRepository) get(ctx context.Context, where string, args ...interface{}) (certificate.Certificate, error) {
	var row certificateRow
	q := repo.db.Rebind("SELECT " + certificateColumns + " FROM certificates WHERE " + where)
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return certificate.Certificate{}, notFound(err, certificate.ErrNotFound, "querying certificate")
	}
	return row.toCertificate(), nil
}

// GetCertificate fails with a core shutdown error when the pair has more than one row,
// which means the unique constraint on (user_id, course_id) is gone.
func (repo *certificateRepository) GetCertificate(ctx context.Context, learnerID, courseID string) (certificate.Certificate, error) {
	var rows []certificateRow
	q := repo.db.Rebind("SELECT " + certificateColumns + " FROM certificates WHERE user_id = ? AND course_id = ? LIMIT 2")
	if err := repo.db.SelectContext(ctx, &rows, q, learnerID, courseID); err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "querying certificate")
	}
	switch len(rows) {
	case 0:
		return certificate.Certificate{}, certificate.ErrNotFound
	case 1:
		return rows[0].toCertificate(), nil
	}
	return certificate.Certificate{}, core.NewShutdownError(
		fmt.Sprintf("certificates: duplicate rows for user %q and course %q", learnerID, courseID))
}

func (repo *certificateRepository) GetCertificateByID(ctx context.Context, id string) (certificate.Certificate, error) {
	return repo.get(ctx, "id = ?", id)
}

func (repo *certificateRepository) FilterCertificates(ctx context.Context, filter certificate.QueryFilter) ([]certificate.Certificate, error) {
	q := "SELECT " + certificateColumns + " FROM certificates WHERE 1 = 1"
	args := make([]interface{}, 0, 5)
	if filter.LearnerID != "" {
		q += " AND user_id = ?"
		args = append(args, filter.LearnerID)
	}
	if filter.CourseID != "" {
		q += " AND course_id = ?"
		args = append(args, filter.CourseID)
	}
	if search := core.CleanString(filter.Search, true); search != "" {
		q += " AND (LOWER(user_name) LIKE ? OR LOWER(course_name) LIKE ?)"
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	q += " ORDER BY " + core.OrderBy(filter.Ordering, certificateOrderings, "issue_date DESC")
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			q += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows := make([]certificateRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying certificates")
	}
	certs := make([]certificate.Certificate, 0, len(rows))
	for _, r := range rows {
		certs = append(certs, r.toCertificate())
	}
	return certs, nil
}

func (repo *certificateRepository) CountCertificates(ctx context.Context, courseID string) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM certificates"
	args := make([]interface{}, 0, 1)
	if courseID != "" {
		q += " WHERE course_id = ?"
		args = append(args, courseID)
	}
	err := repo.db.GetContext(ctx, &n, repo.db.Rebind(q), args...)
	return n, errors.Wrap(err, "counting certificates")
}

func (repo *certificateRepository) UpdateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	row := newCertificateRow(cert)
	res, err := repo.db.NamedExecContext(ctx,
		`UPDATE certificates SET issue_date = :issue_date, expiry_date = :expiry_date,
			certificate_url = :certificate_url, certificate_html = :certificate_html
		WHERE id = :id`, row)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "updating certificate")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return repo.GetCertificateByID(ctx, cert.ID)
}

func (repo *certificateRepository) DeleteCertificate(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM certificates WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return certificate.ErrNotFound
	}
	return nil
}
