package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/progress"
)

type (
	Options struct {
		Address        string
		AppName        string
		Debug          bool
		TestMode       bool
		DisableReqLogs bool
		SecretKey      string

		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		CourseSvc      *course.Service
		Calculator     *progress.Calculator
		Evaluator      *progress.Evaluator
		CertificateSvc *certificate.Service

		// MetricsHandler is served under /metrics when set.
		MetricsHandler http.Handler
		// ShutdownSignal is called when a handler fails with a core shutdown error.
		ShutdownSignal func()
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.ShutdownSignal == nil {
		opts.ShutdownSignal = func() {}
	}
	if opts.Validate == nil || opts.Translator == nil {
		opts.Validate, opts.Translator = core.NewValidator()
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Debug || s.opts.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.ShutdownSignal)
	s.app.Debug = s.opts.Debug

	s.app.GET("/", s.home)
	if s.opts.MetricsHandler != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.MetricsHandler))
	}

	v1 := s.app.Group("/v1")
	auth := []echo.MiddlewareFunc{middleware.JWTWithConfig(jwtConfig(s.opts.SecretKey)), identityMiddleware}

	registerCourseAPI(v1, auth, s.opts.CourseSvc, s.opts.Calculator, s.opts.Evaluator, s.opts.CertificateSvc, s.opts.Validate)
	registerCertificateAPI(v1, auth, s.opts.CertificateSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.AppName+" API!")
}
