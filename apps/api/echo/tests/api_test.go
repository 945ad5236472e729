package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/guigasprogramador/oneeduca/apps/api/echo"
	"github.com/guigasprogramador/oneeduca/apps/shared"
	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/user"
	dummydb "github.com/guigasprogramador/oneeduca/storage/database/dummy"
	"github.com/guigasprogramador/oneeduca/tests"
)

func Test_home(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to OneEduca API!", rec.Body.String())
}

func Test_certificateFlow(t *testing.T) {
	repos := deps.Repos
	ana := testutil.CreateProfile(t, repos.Profiles, "Ana Souza", "ana.flow@test.br", user.RoleStudent)
	crs, lessons := testutil.CreateCourse(t, repos.Courses, "Go para Web", "40h", 2, 2)

	anaToken := getToken(t, core.Identity{ID: ana.ID, Email: ana.Email, Roles: []string{user.RoleStudent}})
	bobToken := getToken(t, core.Identity{ID: "bob-flow", Roles: []string{user.RoleStudent}})
	profToken := getToken(t, core.Identity{ID: "prof-flow", Roles: []string{user.RoleProfessor}})
	adminToken := getToken(t, core.Identity{ID: "admin-flow", Roles: []string{user.RoleAdmin}})

	coursePath := "/v1/courses/" + crs.ID
	lessonPath := func(l course.Lesson) string { return "/v1/lessons/" + l.ID + "/completion" }
	completed := []byte(`{"completed": true}`)

	runHTTPTests(t, []httpTest{
		{name: "enroll: no token", method: http.MethodPost, path: coursePath + "/enroll", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "enroll: unknown course", method: http.MethodPost, path: "/v1/courses/nope/enroll", token: anaToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()})},
		{name: "enroll", method: http.MethodPost, path: coursePath + "/enroll", token: anaToken, wantCode: http.StatusCreated},
		{name: "enroll: twice", method: http.MethodPost, path: coursePath + "/enroll", token: anaToken, wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: course.ErrAlreadyEnrolled.Error()})},
		{name: "completion: missing field", method: http.MethodPut, path: lessonPath(lessons[0]), token: anaToken, body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"completed": "this field is required"}`)},
		{name: "completion: unknown lesson", method: http.MethodPut, path: "/v1/lessons/nope/completion", token: anaToken, body: completed, wantCode: http.StatusNotFound},
	})

	for i, l := range lessons[:3] {
		rec := serve(http.MethodPut, lessonPath(l), anaToken, completed)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got struct {
			CourseID string `json:"course_id"`
			Progress int    `json:"progress"`
		}
		unmarshal(t, rec, &got)
		assert.Equal(t, crs.ID, got.CourseID)
		assert.Equal(t, []int{25, 50, 75}[i], got.Progress)
	}
	deps.Calculator.Flush()

	runHTTPTests(t, []httpTest{
		{name: "progress", method: http.MethodGet, path: coursePath + "/progress", token: anaToken, wantCode: http.StatusOK, wantData: []byte(`{"course_id": "` + crs.ID + `", "progress": 75}`)},
		{name: "eligibility: not yet", method: http.MethodGet, path: coursePath + "/eligibility", token: anaToken, wantCode: http.StatusOK, wantData: []byte(`{"course_id": "` + crs.ID + `", "eligible": false}`)},
		{name: "certificate: not eligible", method: http.MethodPost, path: coursePath + "/certificate", token: anaToken, wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: certificate.ErrIneligible.Error()})},
		{name: "certificate: none yet", method: http.MethodGet, path: coursePath + "/certificate", token: anaToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: certificate.ErrNotFound.Error()})},
	})

	rec := serve(http.MethodPut, lessonPath(lessons[3]), anaToken, completed)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deps.Calculator.Flush()

	runHTTPTests(t, []httpTest{
		{name: "eligibility", method: http.MethodGet, path: coursePath + "/eligibility", token: anaToken, wantCode: http.StatusOK, wantData: []byte(`{"course_id": "` + crs.ID + `", "eligible": true}`)},
	})

	rec = serve(http.MethodPost, coursePath+"/certificate", anaToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cert certificate.Certificate
	unmarshal(t, rec, &cert)
	assert.Equal(t, certificate.Durable, cert.Provenance)
	assert.Equal(t, "Ana Souza", cert.LearnerName)
	assert.Equal(t, "Go para Web", cert.CourseTitle)
	assert.Equal(t, 40, cert.CourseHours)

	t.Run("issuing again returns the same certificate", func(t *testing.T) {
		rec := serve(http.MethodPost, coursePath+"/certificate", anaToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var again certificate.Certificate
		unmarshal(t, rec, &again)
		assert.Equal(t, cert.ID, again.ID)
	})

	t.Run("finding the certificate", func(t *testing.T) {
		rec := serve(http.MethodGet, coursePath+"/certificate", anaToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var found certificate.Certificate
		unmarshal(t, rec, &found)
		assert.Equal(t, cert.ID, found.ID)
	})

	t.Run("own certificates", func(t *testing.T) {
		rec := serve(http.MethodGet, "/v1/certificates", anaToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var certs []certificate.Certificate
		unmarshal(t, rec, &certs)
		require.Len(t, certs, 1)
		assert.Equal(t, cert.ID, certs[0].ID)
	})

	t.Run("document", func(t *testing.T) {
		path := "/v1/certificates/" + cert.ID + "/document"
		rec := serve(http.MethodGet, path, anaToken)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "Ana Souza"))

		rec = serve(http.MethodGet, path, bobToken)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = serve(http.MethodGet, path, profToken)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("public verification", func(t *testing.T) {
		rec := serve(http.MethodGet, "/v1/certificates/"+cert.ID+"/verify", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]interface{}
		unmarshal(t, rec, &got)
		assert.Equal(t, true, got["valid"])
		assert.Equal(t, "Ana Souza", got["user_name"])
		assert.NotContains(t, got, "certificate_html")

		rec = serve(http.MethodGet, "/v1/certificates/virtual-123/verify", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	runHTTPTests(t, []httpTest{
		{name: "own certificates: bad limit", method: http.MethodGet, path: "/v1/certificates?limit=ten", token: anaToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"limit": "must be a non-negative integer"}`)},
		{name: "admin: bad paging", method: http.MethodGet, path: "/v1/admin/certificates?limit=-1&offset=x", token: profToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"limit": "must be a non-negative integer", "offset": "must be a non-negative integer"}`)},
		{name: "admin: student", method: http.MethodGet, path: "/v1/admin/certificates", token: anaToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})},
		{name: "admin: list", method: http.MethodGet, path: "/v1/admin/certificates?course=" + crs.ID + "&ordering=-issue_date", token: profToken, wantCode: http.StatusOK},
		{name: "admin: stats", method: http.MethodGet, path: "/v1/admin/courses/" + crs.ID + "/stats", token: profToken, wantCode: http.StatusOK, wantData: marchallObj(t, certificate.Stats{
			CourseID:             crs.ID,
			TotalCertificates:    1,
			TotalEnrollments:     1,
			CompletedEnrollments: 1,
			CompletionRate:       100,
			CertificationRate:    100,
		})},
		{name: "admin: batch", method: http.MethodPost, path: "/v1/admin/courses/" + crs.ID + "/certificates", token: profToken, wantCode: http.StatusOK, wantData: marchallObj(t, certificate.BatchReport{CourseID: crs.ID, Total: 1, Succeeded: 1})},
		{name: "admin: regenerate", method: http.MethodPost, path: "/v1/admin/certificates/" + cert.ID + "/regenerate", token: profToken, wantCode: http.StatusOK},
		{name: "admin: regenerate unknown", method: http.MethodPost, path: "/v1/admin/certificates/nope/regenerate", token: profToken, wantCode: http.StatusNotFound},
		{name: "admin: revoke as professor", method: http.MethodDelete, path: "/v1/admin/certificates/" + cert.ID, token: profToken, wantCode: http.StatusForbidden},
		{name: "admin: revoke", method: http.MethodDelete, path: "/v1/admin/certificates/" + cert.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "verify revoked", method: http.MethodGet, path: "/v1/certificates/" + cert.ID + "/verify", wantCode: http.StatusNotFound},
	})
}

func Test_brokenCertificateStore(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	broken, err := shared.NewApp(&core.Config{AppName: "OneEduca", SecretKey: secretKey}, logger, shared.Options{
		Repos: &shared.Repositories{
			Profiles:     dummydb.NewProfileRepository(db),
			Courses:      dummydb.NewCourseRepository(db),
			Certificates: dummydb.NewCertificateRepository(db),
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = broken.Close() })

	var signaled bool
	srv := NewServer(&Options{
		AppName:        "OneEduca",
		TestMode:       true,
		DisableReqLogs: true,
		SecretKey:      secretKey,
		Logger:         logger,
		Validate:       broken.Validate,
		Translator:     broken.Translator,
		CourseSvc:      broken.CourseSvc,
		Calculator:     broken.Calculator,
		Evaluator:      broken.Evaluator,
		CertificateSvc: broken.CertificateSvc,
		ShutdownSignal: func() { signaled = true },
	})
	token := getToken(t, core.Identity{ID: "ana-broken", Roles: []string{user.RoleStudent}})

	req, rec := newAuthRequest(http.MethodGet, "/v1/courses/go/certificate", token)
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, signaled)

	db.SetFault(dummydb.OpGetCertificate, core.NewShutdownError("certificates: duplicate rows"))
	req, rec = newAuthRequest(http.MethodGet, "/v1/courses/go/certificate", token)
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, signaled)
}

func Test_metrics(t *testing.T) {
	rec := serve(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "oneeduca_certificates")
}
