package core

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Go Web", CleanString("  Go Web \n"))
	assert.Equal(t, "go web", CleanString("  Go Web ", true))
	assert.Equal(t, "", CleanString("   "))
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, total int
		want        float64
	}{
		{0, 0, 0},
		{1, 0, 0},
		{1, 2, 50},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.part, tt.total), "Percent(%d, %d)", tt.part, tt.total)
	}
}

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"issue_date": "issue_date", "name": "user_name"}
	tests := []struct {
		name      string
		orderings []DBOrdering
		want      string
	}{
		{name: "fallback", want: "issue_date DESC"},
		{name: "unknown fields are dropped", orderings: []DBOrdering{{Field: "password"}}, want: "issue_date DESC"},
		{
			name:      "mapped columns",
			orderings: []DBOrdering{{Field: "name", Ascending: true}, {Field: "drop"}, {Field: "issue_date"}},
			want:      "user_name ASC, issue_date DESC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderBy(tt.orderings, allowed, "issue_date DESC"))
		})
	}
}

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("integrity issue")
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "handling request")))
	assert.False(t, IsShutdown(errors.New("boom")))
}

func TestValidationError(t *testing.T) {
	errTaken := errors.New("email taken")
	tests := []struct {
		name    string
		err     error
		wantMsg string
		wantIs  error
	}{
		{name: "domain error", err: NewValidationError(errTaken, FieldError{Field: "email", Error: "taken"}), wantMsg: "email taken", wantIs: errTaken},
		{name: "fields only", err: NewValidationError(nil, FieldError{Field: "limit", Error: "must be a number"}), wantMsg: "limit: must be a number"},
		{name: "empty", err: NewValidationError(nil), wantMsg: "invalid input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Wrap(tt.err, "creating profile")
			var vErr *ValidationError
			require.True(t, errors.As(wrapped, &vErr))
			assert.Equal(t, tt.wantMsg, vErr.Error())
			if tt.wantIs != nil {
				assert.True(t, errors.Is(wrapped, tt.wantIs))
			}
			assert.Same(t, vErr, errors.Cause(wrapped))
		})
	}
}

func TestIdentityFromContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithIdentity(context.Background(), Identity{ID: "ana", Name: "Ana"})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "Ana", id.Name)
}

func TestValidators(t *testing.T) {
	validate, translator := NewValidator()

	type payload struct {
		ID   string `json:"id" validate:"identifier"`
		Name string `json:"name" validate:"required"`
	}

	err := validate.Struct(payload{ID: "c0ffee-01", Name: "Ana"})
	assert.NoError(t, err)

	err = validate.Struct(payload{ID: "no spaces/allowed"})
	require.Error(t, err)
	assert.Equal(t, map[string]string{
		"id":   "id must be a valid identifier",
		"name": "this field is required",
	}, TranslateValidationErrors(err.(validator.ValidationErrors), translator))
}

func TestEmailMessage(t *testing.T) {
	msg := &EmailMessage{
		TemplateName: "certificate_issued",
		TemplateData: struct {
			Name        string
			AppName     string
			CourseTitle string
			VerifyURL   string
		}{"Ana", "OneEduca", "Go", "https://oneeduca.test/certificates/1"},
	}
	require.NoError(t, msg.Render())
	assert.Contains(t, msg.TextContent, "https://oneeduca.test/certificates/1")
	assert.Contains(t, msg.HTMLContent, "Go")
	assert.True(t, msg.HasContent())
	assert.False(t, msg.HasRecipients())

	require.NoError(t, msg.Attach(strings.NewReader("<html></html>"), "certificado.html", "text/html"))
	require.True(t, msg.HasAttachments())
	decoded, err := base64.StdEncoding.DecodeString(msg.Attachments[0].Content.String())
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(decoded))

	unknown := &EmailMessage{TemplateName: "nope"}
	assert.Error(t, unknown.Render())
}
