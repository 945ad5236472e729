package certificate

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var registrationRegex = regexp.MustCompile(`CERT-[0-9A-Z]+-[0-9A-Z]{5}`)

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer("https://oneeduca.test/certificates/")
	require.NoError(t, err)

	cert := Certificate{
		ID:          "c0ffee",
		LearnerName: "Maria Silva",
		CourseTitle: "Go Avançado",
		CourseHours: 40,
		IssuedAt:    time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC),
	}

	doc, err := r.Render(cert)
	require.NoError(t, err)
	for _, want := range []string{
		"Maria Silva",
		"Go Avançado",
		"40 horas",
		"março",
		`data-certificate-id="c0ffee"`,
		"Código de verificação: c0ffee",
		"https://oneeduca.test/certificates/c0ffee",
	} {
		assert.Contains(t, doc, want)
	}
	assert.Regexp(t, registrationRegex, doc)

	t.Run("only the registration number varies", func(t *testing.T) {
		other, err := r.Render(cert)
		require.NoError(t, err)
		strip := func(s string) string { return registrationRegex.ReplaceAllString(s, "CERT") }
		assert.Equal(t, strip(doc), strip(other))
	})

	t.Run("display data is escaped", func(t *testing.T) {
		cert := cert
		cert.LearnerName = `<script>alert("x")</script>`
		doc, err := r.Render(cert)
		require.NoError(t, err)
		assert.NotContains(t, doc, "<script>")
		assert.True(t, strings.Contains(doc, "&lt;script&gt;"))
	})
}

func Test_registrationNumber(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	got := registrationNumber(now)
	assert.Regexp(t, `^CERT-[0-9A-Z]+-[0-9A-Z]{5}$`, got)
	assert.True(t, strings.HasPrefix(got, "CERT-LOYW3V28-"), got)
}
