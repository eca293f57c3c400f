package gemchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/igolaizola/gemchat/internal/memory"
	"github.com/igolaizola/gemchat/internal/memory/file"
	"github.com/igolaizola/gemchat/internal/memory/fixed"
	"github.com/igolaizola/gemchat/internal/session"
	"github.com/igolaizola/gemchat/internal/transcript"
	"github.com/igolaizola/gemchat/pkg/openai"
	"gopkg.in/yaml.v3"
)

// ErrMissingKey is returned when no api key is configured.
var ErrMissingKey = errors.New("gemchat: GEMINI_API_KEY is not set, add it to a .env file or export it in your shell")

type Config struct {
	APIKey       string        `yaml:"api-key"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base-url"`
	MemoryFile   string        `yaml:"memory-file"`
	MaxExchanges int           `yaml:"max-exchanges"`
	MaxTokens    int           `yaml:"max-tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	Wait         time.Duration `yaml:"wait"`
	LogDir       string        `yaml:"log"`

	// History parameters
	Format string `yaml:"format"`
}

func Run(ctx context.Context, action string, cfg *Config) error {
	switch action {
	case "chat":
		return Chat(ctx, cfg)
	case "history":
		return History(ctx, cfg)
	case "reset":
		return Reset(ctx, cfg)
	default:
		return fmt.Errorf("gemchat: unknown action: %s", action)
	}
}

// Chat runs an interactive chat session on the standard input and output.
func Chat(ctx context.Context, cfg *Config) error {
	return chat(ctx, cfg, os.Stdin, os.Stdout)
}

func chat(ctx context.Context, cfg *Config, in io.Reader, out io.Writer) error {
	if cfg.APIKey == "" {
		return ErrMissingKey
	}
	if cfg.MaxExchanges < 1 {
		return fmt.Errorf("gemchat: max exchanges must be positive, got %d", cfg.MaxExchanges)
	}

	// Create completion client
	client := openai.New(&openai.Config{
		Key:       cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
		Wait:      cfg.Wait,
	})

	// Set transcript logger
	logger, err := transcript.New(client, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("gemchat: couldn't create logger: %w", err)
	}
	defer logger.Close()

	sess, err := session.New(&session.Config{
		Generator:    logger,
		Store:        file.New(cfg.MemoryFile),
		MaxExchanges: cfg.MaxExchanges,
		Timeout:      cfg.Timeout,
	})
	if err != nil {
		return fmt.Errorf("gemchat: couldn't create session: %w", err)
	}
	return sess.Run(ctx, in, out)
}

// History prints the stored conversation memory.
func History(ctx context.Context, cfg *Config) error {
	return history(cfg, os.Stdout)
}

func history(cfg *Config, out io.Writer) error {
	store := file.New(cfg.MemoryFile)
	turns, err := fixed.NewFixedMemory(cfg.MaxExchanges, store.Load()...).Sum()
	if err != nil {
		return fmt.Errorf("gemchat: couldn't sum memory: %w", err)
	}

	switch cfg.Format {
	case "", "text":
		if len(turns) == 0 {
			log.Printf("gemchat: no conversation stored in %s", store.Path())
			return nil
		}
		fmt.Fprint(out, memory.Render(turns))
	case "json":
		if turns == nil {
			turns = []memory.Turn{}
		}
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(turns); err != nil {
			return fmt.Errorf("gemchat: couldn't marshal memory: %w", err)
		}
	case "yaml":
		if turns == nil {
			turns = []memory.Turn{}
		}
		b, err := yaml.Marshal(turns)
		if err != nil {
			return fmt.Errorf("gemchat: couldn't marshal memory: %w", err)
		}
		if _, err := out.Write(b); err != nil {
			return fmt.Errorf("gemchat: couldn't write memory: %w", err)
		}
	default:
		return fmt.Errorf("gemchat: invalid format: %s", cfg.Format)
	}
	return nil
}

// Reset removes all the stored turns.
func Reset(ctx context.Context, cfg *Config) error {
	store := file.New(cfg.MemoryFile)
	if err := store.Save(nil); err != nil {
		return fmt.Errorf("gemchat: couldn't reset memory: %w", err)
	}
	log.Printf("gemchat: memory cleared in %s", store.Path())
	return nil
}
