package core

// Logger is any leveled logging sink the app can report to.
// Implementations may inspect args for well-known types (eg. a user.User
// to attach the acting principal to an error report).
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
