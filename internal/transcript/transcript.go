package transcript

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Logger wraps a generator and writes every prompt and answer to a log file.
type Logger struct {
	Generator
	file io.WriteCloser
	now  func() time.Time
}

// New creates a logger writing to a new timestamped file inside dir.
// If dir is empty nothing is written.
func New(g Generator, dir string) (*Logger, error) {
	l := &Logger{
		Generator: g,
		now:       time.Now,
	}
	if dir == "" {
		return l, nil
	}
	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("transcript: couldn't create directory: %w", err)
	}
	filename := fmt.Sprintf("log_%s.txt", l.now().Format("20060102_150405"))
	filename = filepath.Join(dir, filename)
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("transcript: couldn't open log file: %w", err)
	}
	l.file = f
	return l, nil
}

func (l *Logger) Generate(ctx context.Context, prompt string) (string, error) {
	l.write("<<<<<<<<<<<<<<<<<<<", prompt)
	answer, err := l.Generator.Generate(ctx, prompt)
	if err != nil {
		l.write("!!!!!!!!!!!!!!!!!!!", err.Error())
		return "", err
	}
	l.write(">>>>>>>>>>>>>>>>>>>>", answer)
	return answer, nil
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) write(marker, text string) {
	if l.file == nil {
		return
	}
	fmt.Fprintf(l.file, "%s: %s\n", l.now().Format("2006-01-02 15-04-05"), marker)
	fmt.Fprintln(l.file, text)
}
