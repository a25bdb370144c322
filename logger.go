package acoustic

// Logger is a global interface for acoustic loggers. *logrus.Logger
// satisfies it.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
}

// SilentLogger discards all messages.
var SilentLogger Logger = silentLogger{}

type silentLogger struct{}

func (silentLogger) Debug(args ...interface{}) {}

func (silentLogger) Info(args ...interface{}) {}

func (silentLogger) Warn(args ...interface{}) {}
