package logger

// Logger is the minimal structured logging surface the library components
// depend on. Field maps keep call sites free of any concrete logging backend.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)

	// Named returns a logger scoped to a component ("wallet", "orchestrator").
	Named(name string) Logger
}

type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
func (n NoopLogger) Named(string) Logger        { return n }
