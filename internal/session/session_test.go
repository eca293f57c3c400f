package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/igolaizola/gemchat/internal/memory"
	"github.com/igolaizola/gemchat/internal/memory/file"
)

type fakeGenerator struct {
	prompts []string
	answer  func(prompt string) (string, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.answer == nil {
		return fmt.Sprintf("reply %d", len(g.prompts)), nil
	}
	return g.answer(prompt)
}

func fixedNow() time.Time {
	return time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
}

func newSession(t *testing.T, gen Generator, store Store) *Session {
	t.Helper()
	s, err := New(&Config{
		Generator:    gen,
		Store:        store,
		MaxExchanges: 5,
		Now:          fixedNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "memory.json"))
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no-generator", cfg: Config{Store: store, MaxExchanges: 5}},
		{name: "no-store", cfg: Config{Generator: &fakeGenerator{}, MaxExchanges: 5}},
		{name: "zero-exchanges", cfg: Config{Generator: &fakeGenerator{}, Store: store}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAsk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	gen := &fakeGenerator{}
	s := newSession(t, gen, file.New(path))
	if s.ID() == "" {
		t.Error("empty session id")
	}

	answer, err := s.Ask(context.Background(), "first")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "reply 1" {
		t.Errorf("answer = %q", answer)
	}
	want := "Today's date: 2025-01-02\n\nRecent conversation:\nUser: first\n\nUser: first\nAssistant:"
	if gen.prompts[0] != want {
		t.Errorf("prompt = %q, want %q", gen.prompts[0], want)
	}

	if _, err := s.Ask(context.Background(), "second\nline"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"User: first", "Assistant: reply 1", "User: second line"} {
		if !strings.Contains(gen.prompts[1], want) {
			t.Errorf("second prompt doesn't contain %q: %q", want, gen.prompts[1])
		}
	}

	wantTurns := []memory.Turn{
		{Role: memory.User, Text: "first"},
		{Role: memory.Assistant, Text: "reply 1"},
		{Role: memory.User, Text: "second\nline"},
		{Role: memory.Assistant, Text: "reply 2"},
	}
	if got := s.Turns(); !reflect.DeepEqual(got, wantTurns) {
		t.Errorf("Turns() = %v, want %v", got, wantTurns)
	}
	if got := file.New(path).Load(); !reflect.DeepEqual(got, wantTurns) {
		t.Errorf("stored turns = %v, want %v", got, wantTurns)
	}
}

func TestAskFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	gen := &fakeGenerator{answer: func(string) (string, error) {
		return "", errors.New("unavailable")
	}}
	s := newSession(t, gen, file.New(path))

	if _, err := s.Ask(context.Background(), "hi"); err == nil {
		t.Fatal("expected error")
	}
	want := []memory.Turn{{Role: memory.User, Text: "hi"}}
	if got := s.Turns(); !reflect.DeepEqual(got, want) {
		t.Errorf("Turns() = %v, want %v", got, want)
	}
	if got := file.New(path).Load(); !reflect.DeepEqual(got, want) {
		t.Errorf("stored turns = %v, want %v", got, want)
	}
}

func TestAskTimeout(t *testing.T) {
	gen := &fakeGenerator{}
	s, err := New(&Config{
		Generator:    gen,
		Store:        file.New(filepath.Join(t.TempDir(), "memory.json")),
		MaxExchanges: 5,
		Timeout:      20 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.generator = generatorFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	if _, err := s.Ask(context.Background(), "hi"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if n := len(s.Turns()); n != 1 {
		t.Errorf("len = %d, want 1", n)
	}
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestAskSaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatal(err)
	}
	s := newSession(t, &fakeGenerator{}, file.New(filepath.Join(blocker, "memory.json")))

	answer, err := s.Ask(context.Background(), "hi")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "reply 1" {
		t.Errorf("answer = %q", answer)
	}
	if n := len(s.Turns()); n != 2 {
		t.Errorf("len = %d, want 2", n)
	}
}

func TestAskEvictsStoredTurns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	var stored []memory.Turn
	for i := 0; i < 10; i++ {
		role := memory.User
		if i%2 == 1 {
			role = memory.Assistant
		}
		stored = append(stored, memory.Turn{Role: role, Text: fmt.Sprint(i)})
	}
	if err := file.New(path).Save(stored); err != nil {
		t.Fatal(err)
	}

	s := newSession(t, &fakeGenerator{}, file.New(path))
	if !reflect.DeepEqual(s.Turns(), stored) {
		t.Fatalf("Turns() = %v, want stored turns", s.Turns())
	}
	if _, err := s.Ask(context.Background(), "new"); err != nil {
		t.Fatal(err)
	}
	got := file.New(path).Load()
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
	if got[0] != stored[2] {
		t.Errorf("first = %v, want %v", got[0], stored[2])
	}
	if got[9].Text != "reply 1" {
		t.Errorf("last = %v", got[9])
	}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		fail      bool
		wantCalls int
		wantOut   []string
		wantTurns int
	}{
		{
			name:      "exit",
			input:     "hi\nexit\nignored\n",
			wantCalls: 1,
			wantOut:   []string{"Answer: reply 1"},
			wantTurns: 2,
		},
		{
			name:      "exit-case-insensitive",
			input:     "hi\n  EXIT \nignored\n",
			wantCalls: 1,
			wantOut:   []string{"Answer: reply 1"},
			wantTurns: 2,
		},
		{
			name:      "end-of-input",
			input:     "one\ntwo",
			wantCalls: 2,
			wantOut:   []string{"Answer: reply 1", "Answer: reply 2"},
			wantTurns: 4,
		},
		{
			name:      "blank-lines",
			input:     "\n   \nhi\r\nexit\n",
			wantCalls: 1,
			wantOut:   []string{"Answer: reply 1"},
			wantTurns: 2,
		},
		{
			name:      "failure-continues",
			input:     "one\ntwo\nexit\n",
			fail:      true,
			wantCalls: 2,
			wantOut:   []string{"Error calling the API:", "boom"},
			wantTurns: 2,
		},
		{
			name:  "immediate-exit",
			input: "exit\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			if tt.fail {
				gen.answer = func(string) (string, error) {
					return "", errors.New("boom")
				}
			}
			s := newSession(t, gen, file.New(filepath.Join(t.TempDir(), "memory.json")))

			var out bytes.Buffer
			if err := s.Run(context.Background(), strings.NewReader(tt.input), &out); err != nil {
				t.Fatal(err)
			}
			if len(gen.prompts) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(gen.prompts), tt.wantCalls)
			}
			if !strings.HasPrefix(out.String(), Question) {
				t.Errorf("output doesn't start with the question: %q", out.String())
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output doesn't contain %q: %q", want, out.String())
				}
			}
			if n := len(s.Turns()); n != tt.wantTurns {
				t.Errorf("turns = %d, want %d", n, tt.wantTurns)
			}
		})
	}
}

func TestRunCanceled(t *testing.T) {
	s := newSession(t, &fakeGenerator{}, file.New(filepath.Join(t.TempDir(), "memory.json")))
	rd, wr := io.Pipe()
	defer wr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- s.Run(ctx, rd, io.Discard)
	}()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run didn't stop after cancel")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("broken")
}

func TestRunReadError(t *testing.T) {
	s := newSession(t, &fakeGenerator{}, file.New(filepath.Join(t.TempDir(), "memory.json")))
	if err := s.Run(context.Background(), errReader{}, io.Discard); err == nil {
		t.Fatal("expected error")
	}
}
