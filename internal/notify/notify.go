// Package notify delivers one-line transient messages to the user.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

type Notifier interface {
	Notify(level Level, msg string)
}

func Success(n Notifier, msg string) { n.Notify(LevelSuccess, msg) }
func Info(n Notifier, msg string)    { n.Notify(LevelInfo, msg) }
func Error(n Notifier, msg string)   { n.Notify(LevelError, msg) }

// Console prints coloured lines, errors in red.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Notify(level Level, msg string) {
	var paint *color.Color
	switch level {
	case LevelSuccess:
		paint = color.New(color.FgGreen)
	case LevelError:
		paint = color.New(color.FgRed, color.Bold)
	default:
		paint = color.New(color.FgCyan)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = paint.Fprintln(c.out, msg)
}

// Log writes notifications as log events.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(level Level, msg string) {
	event := l.log.Info()
	if level == LevelError {
		event = l.log.Warn()
	}
	event.Str("notice", string(level)).Msg(msg)
}

type Message struct {
	Level Level
	Text  string
}

func (m Message) String() string { return fmt.Sprintf("%s: %s", m.Level, m.Text) }

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Level: level, Text: msg})
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return Message{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(level Level, msg string) {
	for _, n := range m {
		n.Notify(level, msg)
	}
}
