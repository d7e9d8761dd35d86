package logging

import (
	"bytes"
	"fmt"
	"log"
	"os"
)

// Fatalf logs at Error level and exits.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.Log(Error, 1, format, v...)
	os.Exit(1)
}

// StdLogger adapts this logger for APIs that insist on a standard library
// *log.Logger (e.g. http.Server.ErrorLog). Every line is logged at the given
// level.
func (l *Logger) StdLogger(level Level) *log.Logger {
	return log.New(&lineWriter{l, level}, "", 0)
}

type lineWriter struct {
	l     *Logger
	level Level
}

func (w *lineWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\n"))
	w.l.Log(w.level, 3, "%s", msg)
	return len(p), nil
}

func (l *Logger) String() string {
	return fmt.Sprintf("logger(%s@%v)", l.Tag, l.Level)
}
