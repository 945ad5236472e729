package certificate

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/user"
)

var (
	// errors
	ErrIneligible = errors.New("learner is not yet eligible for a certificate: complete every lesson of the course first")
	ErrNotFound   = errors.New("certificate not found")
	// ErrDuplicate is returned by Repository.CreateCertificate when the (learner, course) pair already has a certificate.
	ErrDuplicate = errors.New("certificate already exists for this learner and course")
)

var NowFunc = time.Now // mockable

type (
	// Repository is the durable certificate store. It must enforce uniqueness of (LearnerID, CourseID).
	Repository interface {
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		// GetCertificate returns ErrNotFound when the pair has no certificate.
		GetCertificate(ctx context.Context, learnerID, courseID string) (Certificate, error)
		GetCertificateByID(ctx context.Context, id string) (Certificate, error)
		// FilterCertificates applies AND operation on the set QueryFilter fields.
		FilterCertificates(ctx context.Context, filter QueryFilter) ([]Certificate, error)
		CountCertificates(ctx context.Context, courseID string) (int, error)
		UpdateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		DeleteCertificate(ctx context.Context, id string) error
	}

	// EligibilityChecker decides whether a learner qualifies for a course certificate.
	EligibilityChecker interface {
		IsEligible(ctx context.Context, learnerID, courseID string) (bool, error)
	}

	Deps struct {
		Repo        Repository
		Courses     course.Repository
		Profiles    user.Repository
		Eligibility EligibilityChecker
		Cache       Cache
		Renderer    *Renderer
		Logger      core.Logger
		Mailer      core.EmailService // optional
		Metrics     *Metrics          // optional
		AppName     string
		VerifyURL   string // base URL of the public verification page
		// BatchConcurrency bounds IssueBatch; defaults to 4.
		BatchConcurrency int
	}

	Service struct {
		repo        Repository
		courses     course.Repository
		profiles    user.Repository
		eligibility EligibilityChecker
		cache       Cache
		renderer    *Renderer
		logger      core.Logger
		mailer      core.EmailService
		metrics     *Metrics
		appName     string
		verifyURL   string
		batchLimit  int
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		repo:        deps.Repo,
		courses:     deps.Courses,
		profiles:    deps.Profiles,
		eligibility: deps.Eligibility,
		cache:       deps.Cache,
		renderer:    deps.Renderer,
		logger:      deps.Logger,
		mailer:      deps.Mailer,
		metrics:     deps.Metrics,
		appName:     deps.AppName,
		verifyURL:   strings.TrimRight(deps.VerifyURL, "/"),
		batchLimit:  deps.BatchConcurrency,
	}
	if svc.cache == nil {
		svc.cache = NewMemoryCache(CacheConfig{})
	}
	if svc.batchLimit <= 0 {
		svc.batchLimit = 4
	}
	return svc
}

// Issue returns the learner's certificate for the course, creating it when the learner is eligible.
//
// ErrIneligible is the only error of normal operation: store failures resolve to a Virtual certificate,
// and a lost insert race resolves to the certificate of the winner. A core shutdown error from the
// store (the pair holds more than one certificate) is returned as is, nothing is inserted.
func (svc *Service) Issue(ctx context.Context, learnerID, courseID string) (Certificate, error) {
	key := KeyFor(learnerID, courseID)

	if cert, ok := svc.cached(ctx, key); ok {
		svc.metrics.observeLookup("cache")
		return cert, nil
	}

	cert, err := svc.repo.GetCertificate(ctx, learnerID, courseID)
	switch {
	case err == nil:
		svc.metrics.observeLookup("store")
		svc.cache.Put(ctx, key, cert)
		return cert, nil
	case core.IsShutdown(err):
		return Certificate{}, errors.Wrap(err, "looking up existing certificate")
	case !errors.Is(err, ErrNotFound):
		svc.logger.Warn("looking up existing certificate", "error", err, "learner", learnerID, "course", courseID)
	}

	eligible, err := svc.eligibility.IsEligible(ctx, learnerID, courseID)
	if err != nil {
		// fail closed: an unverifiable completion is not a completion
		svc.logger.Error("checking certificate eligibility", "error", err, "learner", learnerID, "course", courseID)
		eligible = false
	}
	if !eligible {
		svc.metrics.observeIneligible()
		return Certificate{}, ErrIneligible
	}

	cert = svc.enrich(ctx, learnerID, courseID)
	cert.ID = uuid.NewString()
	cert.IssuedAt = NowFunc().UTC()
	svc.attachDocument(&cert)

	created, err := svc.repo.CreateCertificate(ctx, cert)
	switch {
	case err == nil:
		cert = created
		cert.Provenance = Durable
		svc.metrics.observeIssued(cert, "created")
		svc.notify(ctx, cert)
	case errors.Is(err, ErrDuplicate):
		svc.metrics.observeRace()
		winner, qErr := svc.repo.GetCertificate(ctx, learnerID, courseID)
		if qErr != nil {
			svc.logger.Warn("re-querying certificate after insert race", "error", qErr, "learner", learnerID, "course", courseID)
			cert = svc.virtualize(cert)
			svc.metrics.observeIssued(cert, "fallback")
			break
		}
		cert = winner
		svc.metrics.observeIssued(cert, "race_lost")
	default:
		svc.logger.Error("creating certificate, falling back to virtual", "error", err, "learner", learnerID, "course", courseID)
		cert = svc.virtualize(cert)
		svc.metrics.observeIssued(cert, "fallback")
	}

	svc.cache.Invalidate(ctx, key.related()[1:]...)
	svc.cache.Put(ctx, key, cert)
	return cert, nil
}

// HandleCompletion issues the certificate of a learner who just completed a course.
func (svc *Service) HandleCompletion(ctx context.Context, learnerID, courseID string) {
	cert, err := svc.Issue(ctx, learnerID, courseID)
	if core.IsShutdown(err) {
		svc.logger.Error("certificate store integrity", "error", err, "learner", learnerID, "course", courseID)
		return
	}
	if err != nil {
		svc.logger.Info("certificate not issued on completion", "error", err, "learner", learnerID, "course", courseID)
		return
	}
	svc.logger.Info("certificate available", "certificate", cert.ID, "provenance", cert.Provenance.String(), "learner", learnerID, "course", courseID)
}

// HasCertificate reports whether the pair already has a certificate, cached or stored.
func (svc *Service) HasCertificate(ctx context.Context, learnerID, courseID string) (bool, error) {
	if _, ok := svc.cached(ctx, KeyFor(learnerID, courseID)); ok {
		return true, nil
	}
	_, err := svc.repo.GetCertificate(ctx, learnerID, courseID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Find returns the existing certificate of the pair without issuing one.
func (svc *Service) Find(ctx context.Context, learnerID, courseID string) (Certificate, error) {
	key := KeyFor(learnerID, courseID)
	if cert, ok := svc.cached(ctx, key); ok {
		svc.metrics.observeLookup("cache")
		return cert, nil
	}
	cert, err := svc.repo.GetCertificate(ctx, learnerID, courseID)
	if err != nil {
		return Certificate{}, err
	}
	svc.metrics.observeLookup("store")
	svc.cache.Put(ctx, key, cert)
	return cert, nil
}

// Verify returns the durable certificate with this verification code (its identifier).
func (svc *Service) Verify(ctx context.Context, id string) (Certificate, error) {
	if IsVirtualID(id) {
		return Certificate{}, ErrNotFound
	}
	return svc.repo.GetCertificateByID(ctx, id)
}

// List filters durable certificates. Unpaginated learner/course lookups are cached under their wildcard key.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Certificate, error) {
	cacheable := filter.Search == "" && filter.Limit == 0 && filter.Offset == 0 && len(filter.Ordering) == 0
	key := KeyFor(filter.LearnerID, filter.CourseID)
	if cacheable {
		if certs, ok := svc.cache.Get(ctx, key); ok {
			svc.metrics.observeLookup("cache")
			return certs, nil
		}
	}

	certs, err := svc.repo.FilterCertificates(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "filtering certificates")
	}
	svc.metrics.observeLookup("store")
	if cacheable {
		svc.cache.Put(ctx, key, certs...)
	}
	return certs, nil
}

// Render returns the document of the certificate, rendering it when it was not stored.
func (svc *Service) Render(cert Certificate) (string, error) {
	if cert.Document != "" {
		return cert.Document, nil
	}
	return svc.renderer.Render(cert)
}

// Regenerate re-issues a durable certificate with a new issue date and document.
func (svc *Service) Regenerate(ctx context.Context, id string) (Certificate, error) {
	if IsVirtualID(id) {
		return Certificate{}, ErrNotFound
	}
	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return Certificate{}, err
	}

	cert.IssuedAt = NowFunc().UTC()
	cert.Document = ""
	svc.attachDocument(&cert)

	cert, err = svc.repo.UpdateCertificate(ctx, cert)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "updating certificate")
	}
	svc.cache.Invalidate(ctx, cert.Key().related()...)
	return cert, nil
}

// Revoke deletes a durable certificate.
func (svc *Service) Revoke(ctx context.Context, id string) error {
	if IsVirtualID(id) {
		return ErrNotFound
	}
	cert, err := svc.repo.GetCertificateByID(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteCertificate(ctx, id); err != nil {
		return errors.Wrap(err, "deleting certificate")
	}
	svc.cache.Invalidate(ctx, cert.Key().related()...)
	return nil
}

func (svc *Service) Stats(ctx context.Context, courseID string) (Stats, error) {
	total, err := svc.repo.CountCertificates(ctx, courseID)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting certificates")
	}
	enrollments, err := svc.courses.ListEnrollments(ctx, course.EnrollmentFilter{CourseID: courseID})
	if err != nil {
		return Stats{}, errors.Wrap(err, "listing enrollments")
	}

	var completed int
	for _, e := range enrollments {
		if e.IsComplete() {
			completed++
		}
	}
	return Stats{
		CourseID:             courseID,
		TotalCertificates:    total,
		TotalEnrollments:     len(enrollments),
		CompletedEnrollments: completed,
		CompletionRate:       core.Percent(completed, len(enrollments)),
		CertificationRate:    core.Percent(total, completed),
	}, nil
}

func (svc *Service) cached(ctx context.Context, key Key) (Certificate, bool) {
	certs, ok := svc.cache.Get(ctx, key)
	if !ok || len(certs) == 0 {
		return Certificate{}, false
	}
	return certs[0], true
}

func (svc *Service) virtualize(cert Certificate) Certificate {
	cert.ID = virtualIDPrefix + uuid.NewString()
	cert.Provenance = Virtual
	cert.Document = ""
	svc.attachDocument(&cert)
	return cert
}

func (svc *Service) attachDocument(cert *Certificate) {
	if svc.renderer == nil {
		return
	}
	doc, err := svc.renderer.Render(*cert)
	if err != nil {
		svc.logger.Error("rendering certificate document", "error", err, "certificate", cert.ID)
		return
	}
	cert.Document = doc
}

type issuedEmailData struct {
	Name        string
	AppName     string
	CourseTitle string
	VerifyURL   string
}

func (svc *Service) notify(ctx context.Context, cert Certificate) {
	if svc.mailer == nil || svc.profiles == nil {
		return
	}
	profile, err := svc.profiles.GetProfileByID(ctx, cert.LearnerID)
	if err != nil || profile.Email == "" {
		return
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: cert.LearnerName, Address: profile.Email}},
		Subject:      "Certificado emitido: " + cert.CourseTitle,
		TemplateName: "certificate_issued",
		TemplateData: issuedEmailData{
			Name:        cert.LearnerName,
			AppName:     svc.appName,
			CourseTitle: cert.CourseTitle,
			VerifyURL:   svc.verifyURL + "/" + cert.ID,
		},
	}
	if cert.Document != "" {
		if err = msg.Attach(strings.NewReader(cert.Document), "certificado.html", "text/html"); err != nil {
			svc.logger.Warn("attaching certificate document", "error", err, "certificate", cert.ID)
		}
	}
	svc.mailer.SendMessages(msg)
}
