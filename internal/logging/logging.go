// Package logging provides topic-based debug logging on top of log/slog
// with minimal overhead when disabled.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is a topic-scoped logger. Topics are enabled with the DEBUG_TOPICS
// env var: DEBUG_TOPICS=executor,loop,risk or DEBUG_TOPICS=all.
type Logger struct {
	topic   string
	enabled bool
}

var enabledTopics = make(map[string]bool)

func init() {
	topics := os.Getenv("DEBUG_TOPICS")
	if topics == "" {
		return
	}

	if topics == "all" {
		enabledTopics["*"] = true
		configureSlog()
		return
	}

	for _, topic := range strings.Split(topics, ",") {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			enabledTopics[topic] = true
		}
	}

	if len(enabledTopics) > 0 {
		configureSlog()
	}
}

func configureSlog() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	slog.SetDefault(slog.New(handler))
}

// New creates a topic-specific logger.
// Usage: var loopLog = logging.New("loop")
func New(topic string) *Logger {
	return &Logger{
		topic:   topic,
		enabled: enabledTopics["*"] || enabledTopics[topic],
	}
}

// Debug logs if this topic is enabled. Fast path is a single bool check.
func (l *Logger) Debug(msg string, args ...any) {
	if !l.enabled {
		return
	}
	slog.Debug(msg, append([]any{"topic", l.topic}, args...)...)
}

func (l *Logger) Info(msg string, args ...any) {
	slog.Info(msg, append([]any{"topic", l.topic}, args...)...)
}

func (l *Logger) Warn(msg string, args ...any) {
	slog.Warn(msg, append([]any{"topic", l.topic}, args...)...)
}

func (l *Logger) Error(msg string, args ...any) {
	slog.Error(msg, append([]any{"topic", l.topic}, args...)...)
}

// Enabled is for guarding expensive log-only computations.
func (l *Logger) Enabled() bool {
	return l.enabled
}
