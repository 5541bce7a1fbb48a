package ports

// Logger defines the interface for logging.
//
// Attributes are alternating keys and values. The console output turns an "output"
// attribute, or "target" and "source", into the subject the message is about.
//
//go:generate go run go.uber.org/mock/mockgen -source=logger.go -destination=mocks/mock_logger.go -package=mocks
type Logger interface {
	Debug(msg string, attrs ...any)
	Info(msg string, attrs ...any)
	Warn(msg string, attrs ...any)
	Error(err error)
}
