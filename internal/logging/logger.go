package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// The level at which this logger logs. Any log messages intended for a higher
	// (more verbose) log level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	out *output
}

// Destination shared by a logger and everything derived from it.
type output struct {
	w io.Writer

	// Whether to emit ANSI colors. Only enabled for terminals.
	colored bool

	// Prevents messages from different goroutines from interleaving.
	mu sync.Mutex
}

func newOutput(w io.Writer) *output {
	o := &output{w: w}
	if f, ok := w.(*os.File); ok && !color.NoColor {
		o.colored = isatty.IsTerminal(f.Fd())
	}
	return o
}

// Write to stderr by default.
var DefaultLogger = &Logger{defaultLevel, "", newOutput(os.Stderr)}

// New creates a root logger with the given tag, writing to out.
func New(tag string, out io.Writer) *Logger {
	return &Logger{determineLevel(tag, defaultLevel), tag, newOutput(out)}
}

// Override the destination for this logger and all loggers derived from it.
func (log *Logger) SetDestination(w io.Writer) {
	o := newOutput(w)
	log.out.mu.Lock()
	log.out.w = o.w
	log.out.colored = o.colored
	log.out.mu.Unlock()
}

// Derive a new logger with the given tag. Look up the level based on the tag.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{determineLevel(tag, log.Level), tag, log.out}
}

// Derive a new logger with the given default level. This can still be overridden at
// runtime.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return &Logger{determineLevel(log.Tag, level), log.Tag, log.out}
}

// Wrapper for []byte that implements io.Writer. Simpler and cheaper than
// bytes.Buffer.
type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *buffer) writeByte(c byte) {
	*b = append(*b, c)
}

// A global buffer pool, shared across all loggers. Initial capacity is 256 to
// accommodate *most* log lines.
var bufPool = sync.Pool{
	New: func() interface{} {
		return make(buffer, 0, 256)
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		// Message is too verbose for this logger.
		return
	}

	buf := bufPool.Get().(buffer)
	defer func() { bufPool.Put(buf[:0]) }()

	// Get the caller of Error()/Warn()/Info()/etc.
	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}

	prefix := fmt.Sprintf("%s %c/%s[%s:%d] ",
		time.Now().Format(timestampFormat), level.letter(), log.Tag, filepath.Base(file), line)
	msg := fmt.Sprintf(format, a...)

	log.out.mu.Lock()
	defer log.out.mu.Unlock()

	if log.out.colored {
		prefixColor.Fprint(&buf, prefix[:len(timestampFormat)+1])
		level.color().Fprint(&buf, prefix[len(timestampFormat)+1:])
	} else {
		buf = append(buf, prefix...)
	}
	buf = append(buf, msg...)

	// Append newline if necessary.
	if n := len(msg); n == 0 || msg[n-1] != '\n' {
		buf.writeByte('\n')
	}

	if _, err := log.out.w.Write(buf); err != nil {
		panic(fmt.Sprintf("Failed to log to %v: %v", log.out.w, err))
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}
