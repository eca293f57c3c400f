// Package session runs an interactive conversation with a completion
// service, keeping a bounded memory of the last exchanges on disk.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/igolaizola/gemchat/internal/memory"
	"github.com/igolaizola/gemchat/internal/memory/fixed"
	"github.com/igolaizola/gemchat/internal/prompt"
)

// Question is printed before reading each line of input.
const Question = "Ask a question (or type 'exit' to quit): "

const exitWord = "exit"

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Store interface {
	Load() []memory.Turn
	Save([]memory.Turn) error
}

type buffer interface {
	memory.Memory
	Len() int
	Render() string
}

type Config struct {
	Generator    Generator
	Store        Store
	MaxExchanges int
	// Timeout bounds each call to the generator, zero means no limit.
	Timeout time.Duration
	Now     func() time.Time
}

type Session struct {
	id        string
	generator Generator
	store     Store
	memory    buffer
	timeout   time.Duration
	now       func() time.Time
}

// New creates a session and loads the stored memory.
func New(cfg *Config) (*Session, error) {
	if cfg.Generator == nil {
		return nil, errors.New("session: generator is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session: store is required")
	}
	if cfg.MaxExchanges < 1 {
		return nil, fmt.Errorf("session: max exchanges must be positive, got %d", cfg.MaxExchanges)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:        uuid.NewString(),
		generator: cfg.Generator,
		store:     cfg.Store,
		memory:    fixed.NewFixedMemory(cfg.MaxExchanges, cfg.Store.Load()...),
		timeout:   cfg.Timeout,
		now:       now,
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

// Turns returns the turns currently held in memory.
func (s *Session) Turns() []memory.Turn {
	turns, _ := s.memory.Sum()
	return turns
}

// Ask sends a question to the generator and returns the answer.
// The question is stored before the call; the answer only if the call
// succeeds.
func (s *Session) Ask(ctx context.Context, input string) (string, error) {
	if err := s.add(memory.User, input); err != nil {
		return "", err
	}
	p := prompt.Compose(s.now(), s.memory.Render(), input)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	answer, err := s.generator.Generate(ctx, p)
	if err != nil {
		return "", fmt.Errorf("session: couldn't generate answer: %w", err)
	}

	if err := s.add(memory.Assistant, answer); err != nil {
		return "", err
	}
	return answer, nil
}

// Run reads questions from in and writes answers to out until the exit word
// is read, the input ends or the context is canceled.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	log.Printf("session: started %s (%d turns in memory)", s.id, s.memory.Len())
	defer log.Printf("session: finished %s", s.id)

	done := make(chan struct{})
	defer close(done)
	inputs := readLines(in, done)

	for {
		fmt.Fprint(out, Question)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case msg, ok := <-inputs:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			if msg.err != nil {
				return fmt.Errorf("session: couldn't read input: %w", msg.err)
			}
			line = strings.TrimSpace(msg.line)
		}

		if strings.EqualFold(line, exitWord) {
			return nil
		}
		if line == "" {
			continue
		}

		answer, err := s.Ask(ctx, line)
		if err != nil {
			fmt.Fprintln(out, "Error calling the API:", err)
			continue
		}
		fmt.Fprintln(out, "Answer:", answer)
	}
}

// add appends a turn to memory and saves it. Save errors are only logged.
func (s *Session) add(role memory.Role, text string) error {
	if err := s.memory.Add(memory.Turn{Role: role, Text: text}); err != nil {
		return fmt.Errorf("session: couldn't add %s turn: %w", role, err)
	}
	turns, err := s.memory.Sum()
	if err != nil {
		return fmt.Errorf("session: couldn't sum memory: %w", err)
	}
	if err := s.store.Save(turns); err != nil {
		log.Println(fmt.Errorf("session: couldn't save memory: %w", err))
	}
	return nil
}

type readResult struct {
	line string
	err  error
}

// readLines reads lines in the background so that waiting for input can be
// interrupted. The channel is closed at the end of the input.
func readLines(r io.Reader, done <-chan struct{}) <-chan readResult {
	inputs := make(chan readResult)
	go func() {
		defer close(inputs)
		rd := bufio.NewReader(r)
		for {
			line, err := rd.ReadString('\n')
			if line != "" {
				select {
				case inputs <- readResult{line: line}:
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case inputs <- readResult{err: err}:
					case <-done:
					}
				}
				return
			}
		}
	}()
	return inputs
}
