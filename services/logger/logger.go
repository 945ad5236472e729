package logsvc

import (
	"fmt"
	"os"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/guigasprogramador/oneeduca/core"
)

// Logger writes structured logs with zap and reports warnings and errors to rollbar.
type Logger struct {
	sugar   *zap.SugaredLogger
	rollbar bool
}

var _ core.Logger = (*Logger)(nil)

// NewLogger builds a logger named `name`. Output is human readable on a terminal and JSON otherwise.
// Rollbar reporting is enabled when a token is configured and debug is off.
func NewLogger(conf *core.Config, name string) (*Logger, error) {
	var cfg zap.Config
	if conf.Debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		cfg.Encoding = "json"
		cfg.EncoderConfig = zap.NewProductionEncoderConfig()
	} else {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stdout"}

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	zl = zl.Named(name).With(zap.String("env", conf.Env), zap.String("build", conf.Build))

	enabled := conf.RollbarToken != "" && !conf.Debug
	if enabled {
		rollbar.SetToken(conf.RollbarToken)
		rollbar.SetEnvironment(conf.Env)
		rollbar.SetServerHost(conf.Server.Host)
		rollbar.SetCodeVersion(conf.Build)
		rollbar.SetStackTracer(rollbarerrors.StackTracer)
	}
	rollbar.SetEnabled(enabled)

	return &Logger{sugar: zl.Sugar(), rollbar: enabled}, nil
}

// NewNopLogger discards everything; for tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// With returns a child logger that adds keysAndValues to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...), rollbar: l.rollbar}
}

func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// prepare turns args into zap key/value pairs, and collects the error and extras reported to rollbar.
// Lone error and core.Identity values are accepted in place of a key.
func (l *Logger) prepare(args []interface{}) (kvs []interface{}, err error, extras map[string]interface{}, person *core.Identity) {
	kvs = make([]interface{}, 0, len(args)+2)
	extras = make(map[string]interface{})
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case error:
			if err == nil {
				err = v
			}
			kvs = append(kvs, "error", v)
			continue
		case core.Identity:
			id := v
			person = &id
			kvs = append(kvs, "identity", v.ID)
			continue
		}

		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			kvs = append(kvs, "extra", args[i])
			break
		}
		val := args[i+1]
		i++
		if e, ok := val.(error); ok && err == nil {
			err = e
		}
		kvs = append(kvs, key, val)
		extras[key] = fmt.Sprint(val)
	}
	return kvs, err, extras, person
}

func (l *Logger) report(level, msg string, err error, extras map[string]interface{}, person *core.Identity) {
	if !l.rollbar {
		return
	}
	if person != nil {
		rollbar.SetPerson(person.ID, person.Name, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	if err != nil {
		rollbar.ErrorWithExtras(level, err, mergeMsg(extras, msg))
		return
	}
	rollbar.MessageWithExtras(level, msg, extras)
}

func mergeMsg(extras map[string]interface{}, msg string) map[string]interface{} {
	extras["message"] = msg
	return extras
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	kvs, _, _, _ := l.prepare(args)
	l.sugar.Debugw(msg, kvs...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	kvs, _, _, _ := l.prepare(args)
	l.sugar.Infow(msg, kvs...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	kvs, err, extras, person := l.prepare(args)
	l.sugar.Warnw(msg, kvs...)
	l.report(rollbar.WARN, msg, err, extras, person)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	kvs, err, extras, person := l.prepare(args)
	l.sugar.Errorw(msg, kvs...)
	l.report(rollbar.ERR, msg, err, extras, person)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	kvs, err, extras, person := l.prepare(args)
	l.report(rollbar.CRIT, msg, err, extras, person)
	if l.rollbar {
		rollbar.Wait()
	}
	l.sugar.Fatalw(msg, kvs...)
}
