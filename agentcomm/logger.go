package agentcomm

// Logger is the structured logging interface consumed across the engine.
// Implementations bind static fields with Bind and receive alternating
// key/value pairs, matching stdlib slog conventions.
type Logger interface {
	Info(msg string, fields ...any)
	Debug(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Bind(fields ...any) Logger
}

// NopLogger discards all log output. Useful as a default in tests.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Bind implements Logger.
func (n NopLogger) Bind(...any) Logger { return n }
