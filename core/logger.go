package core

// Logger is implemented by any logging backend.
// args are alternating key/value pairs; error and Identity values may also be passed alone.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
