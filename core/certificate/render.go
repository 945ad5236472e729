package certificate

import (
	"bytes"
	"embed"
	"html/template"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/pt_BR"
	"github.com/pkg/errors"
)

//go:embed templates/certificate.gohtml
var templateFS embed.FS

const registrationAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type documentData struct {
	CertificateID string
	LearnerName   string
	CourseTitle   string
	CourseHours   int
	IssueDate     string
	Registration  string
	VerifyURL     string
}

// Renderer produces the printable HTML document of a certificate.
// Output only varies across calls through the embedded registration number.
type Renderer struct {
	tmpl          *template.Template
	locale        locales.Translator
	verifyBaseURL string
	nowFunc       func() time.Time
}

// NewRenderer parses the document template. verifyBaseURL, when set, is used to build the verification link.
func NewRenderer(verifyBaseURL string) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/certificate.gohtml")
	if err != nil {
		return nil, errors.Wrap(err, "parsing certificate template")
	}
	return &Renderer{
		tmpl:          tmpl.Option("missingkey=error"),
		locale:        pt_BR.New(),
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		nowFunc:       time.Now,
	}, nil
}

func (r *Renderer) Render(cert Certificate) (string, error) {
	data := documentData{
		CertificateID: cert.ID,
		LearnerName:   cert.LearnerName,
		CourseTitle:   cert.CourseTitle,
		CourseHours:   cert.CourseHours,
		IssueDate:     r.FormatDate(cert.IssuedAt),
		Registration:  registrationNumber(r.nowFunc()),
	}
	if r.verifyBaseURL != "" && cert.ID != "" {
		data.VerifyURL = r.verifyBaseURL + "/" + cert.ID
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "rendering certificate")
	}
	return buf.String(), nil
}

// FormatDate formats t with the pt-BR long date convention, e.g. "5 de março de 2024".
func (r *Renderer) FormatDate(t time.Time) string {
	return r.locale.FmtDateLong(t)
}

// registrationNumber is CERT-<base36 unix millis>-<5 random base36 chars>.
func registrationNumber(now time.Time) string {
	var suffix [5]byte
	for i := range suffix {
		suffix[i] = registrationAlphabet[rand.IntN(len(registrationAlphabet))]
	}
	return "CERT-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + string(suffix[:])
}
