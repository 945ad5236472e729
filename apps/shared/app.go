// Package shared builds the service graph used by the api and admin apps.
package shared

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/progress"
	"github.com/guigasprogramador/oneeduca/core/user"
	emailsvc "github.com/guigasprogramador/oneeduca/services/email"
	rediscache "github.com/guigasprogramador/oneeduca/storage/cache/redis"
	"github.com/guigasprogramador/oneeduca/storage/database"
	dummydb "github.com/guigasprogramador/oneeduca/storage/database/dummy"
	sqlxrepos "github.com/guigasprogramador/oneeduca/storage/database/sqlx"
)

// EngineMemory keeps everything in process memory; nothing survives a restart.
const EngineMemory = "memory"

type (
	Repositories struct {
		Profiles     user.Repository
		Courses      course.Repository
		Certificates certificate.Repository
	}

	// App holds the wired services. Close releases the DB & cache connections.
	App struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Registry   *prometheus.Registry
		// DB is nil with the memory engine.
		DB *sqlx.DB

		Repos          Repositories
		UserSvc        *user.Service
		CourseSvc      *course.Service
		Calculator     *progress.Calculator
		Evaluator      *progress.Evaluator
		CertificateSvc *certificate.Service

		closers []func() error
	}

	Options struct {
		// Mailer overrides the email service picked from the config.
		Mailer core.EmailService
		// Repos overrides the repositories picked from Database.Engine.
		Repos *Repositories
		// SkipMigrate leaves the schema as is (the admin app migrates on demand).
		SkipMigrate bool
	}
)

// NewApp opens the storage layers picked by conf and wires the services on top of them.
func NewApp(conf *core.Config, logger core.Logger, opts Options) (*App, error) {
	app := &App{
		Conf:     conf,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	app.Validate, app.Translator = core.NewValidator()

	if opts.Repos != nil {
		app.Repos = *opts.Repos
	} else if err := app.openRepositories(opts.SkipMigrate); err != nil {
		_ = app.Close()
		return nil, err
	}

	mailer := opts.Mailer
	if mailer == nil {
		if conf.Debug || conf.SendgridApiKey == "" {
			mailer = emailsvc.NewConsoleService(conf, logger)
		} else {
			mailer = emailsvc.NewSendgridService(conf, logger)
		}
	}

	renderer, err := certificate.NewRenderer(verifyURL(conf))
	if err != nil {
		_ = app.Close()
		return nil, errors.Wrap(err, "parsing certificate template")
	}

	app.UserSvc = user.NewService(app.Repos.Profiles, app.Validate)
	app.CourseSvc = course.NewService(app.Repos.Courses)
	app.Calculator = progress.NewCalculator(app.Repos.Courses, logger)
	app.Evaluator = progress.NewEvaluator(app.Repos.Courses, nil, logger)
	app.CertificateSvc = certificate.NewService(certificate.Deps{
		Repo:             app.Repos.Certificates,
		Courses:          app.Repos.Courses,
		Profiles:         app.Repos.Profiles,
		Eligibility:      app.Evaluator,
		Cache:            app.newCache(),
		Renderer:         renderer,
		Logger:           logger,
		Mailer:           mailer,
		Metrics:          certificate.NewMetrics(app.Registry),
		AppName:          conf.AppName,
		VerifyURL:        verifyURL(conf),
		BatchConcurrency: conf.Certificate.BatchConcurrency,
	})
	app.Evaluator.SetCertificateFinder(app.CertificateSvc)
	app.Calculator.OnCompletion(app.Evaluator, app.CertificateSvc)

	return app, nil
}

func (app *App) openRepositories(skipMigrate bool) error {
	if app.Conf.Database.Engine == EngineMemory {
		db, err := dummydb.Open()
		if err != nil {
			return errors.Wrap(err, "opening in-memory database")
		}
		app.Repos = Repositories{
			Profiles:     dummydb.NewProfileRepository(db),
			Courses:      dummydb.NewCourseRepository(db),
			Certificates: dummydb.NewCertificateRepository(db),
		}
		return nil
	}

	if err := database.CreateIfNotExist(app.Conf.Database); err != nil {
		return errors.Wrap(err, "creating database")
	}
	db, err := database.Open(app.Conf.Database)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	app.DB = db
	app.closers = append(app.closers, db.Close)

	if !skipMigrate {
		if err = database.Migrate(db); err != nil {
			return errors.Wrap(err, "migrating database")
		}
	}
	app.Repos = Repositories{
		Profiles:     sqlxrepos.NewProfileRepository(db),
		Courses:      sqlxrepos.NewCourseRepository(db),
		Certificates: sqlxrepos.NewCertificateRepository(db),
	}
	return nil
}

// newCache returns the in-process LRU, backed by redis when an address is configured.
func (app *App) newCache() certificate.Cache {
	conf := app.Conf.Certificate
	memory := certificate.NewMemoryCache(certificate.CacheConfig{TTL: conf.CacheTTL, MaxSize: conf.CacheMaxSize})
	if app.Conf.Redis.Addr == "" {
		return memory
	}

	rdb := rediscache.NewClient(app.Conf.Redis)
	remote := rediscache.New(rdb, conf.CacheTTL, app.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := remote.Ping(ctx); err != nil {
		app.Logger.Warn("redis unavailable, using the in-process certificate cache only", err)
		_ = rdb.Close()
		return memory
	}
	app.closers = append(app.closers, rdb.Close)
	return certificate.NewTieredCache(memory, remote)
}

// Close waits for pending progress writes, then closes the connections.
func (app *App) Close() error {
	if app.Calculator != nil {
		app.Calculator.Flush()
	}
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	if len(errs) > 0 {
		return errors.Errorf("closing app: %v", errs)
	}
	return nil
}

func verifyURL(conf *core.Config) string {
	return conf.FrontendBaseURL + "/certificates"
}
