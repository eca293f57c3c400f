package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"time"

	"github.com/igolaizola/gemchat"
	"github.com/igolaizola/gemchat/internal/memory/file"
	"github.com/igolaizola/gemchat/internal/memory/fixed"
	"github.com/igolaizola/gemchat/pkg/openai"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/peterbourgon/ff/v3/ffyaml"
)

// Build flags
var Version = ""
var Commit = ""
var Date = ""

func main() {
	// Create signal based context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Load .env file, variables already set take precedence
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("couldn't load .env file: %v", err)
	}

	// Launch command
	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("gemchat", flag.ExitOnError)
	cfg := registerFlags(fs)

	return &ffcli.Command{
		ShortUsage: "gemchat [flags] <subcommand>",
		ShortHelp:  "chat with gemini keeping the last exchanges as context",
		FlagSet:    fs,
		Options:    options(),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return flag.ErrHelp
			}
			return gemchat.Run(ctx, "chat", cfg)
		},
		Subcommands: []*ffcli.Command{
			newRunCommand("chat", "start an interactive chat (default)"),
			newRunCommand("history", "print the stored conversation"),
			newRunCommand("reset", "clear the stored conversation"),
			newVersionCommand(),
		},
	}
}

func newRunCommand(action, help string) *ffcli.Command {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	cfg := registerFlags(fs)
	if action == "history" {
		fs.StringVar(&cfg.Format, "format", "text", "output format (text, json, yaml)")
	}

	return &ffcli.Command{
		Name:       action,
		ShortUsage: fmt.Sprintf("gemchat %s [flags]", action),
		Options:    options(),
		ShortHelp:  help,
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			return gemchat.Run(ctx, action, cfg)
		},
	}
}

func registerFlags(fs *flag.FlagSet) *gemchat.Config {
	_ = fs.String("config", "gemchat.yaml", "config file (optional)")

	cfg := &gemchat.Config{}
	fs.StringVar(&cfg.APIKey, "api-key", "", "gemini api key, also read from GEMINI_API_KEY")
	fs.StringVar(&cfg.Model, "model", openai.DefaultModel, "model name")
	fs.StringVar(&cfg.BaseURL, "base-url", openai.DefaultBaseURL, "openai compatible api base url")
	fs.StringVar(&cfg.MemoryFile, "memory-file", file.DefaultPath, "conversation memory file")
	fs.IntVar(&cfg.MaxExchanges, "max-exchanges", fixed.DefaultMaxExchanges, "number of recent exchanges to remember")
	fs.IntVar(&cfg.MaxTokens, "max-tokens", 0, "max tokens per answer, 0 uses the model default (optional)")
	fs.DurationVar(&cfg.Timeout, "timeout", 2*time.Minute, "timeout for each request")
	fs.DurationVar(&cfg.Wait, "wait", 1*time.Second, "minimum wait between requests (optional)")
	fs.StringVar(&cfg.LogDir, "log", "", "transcript log directory, if empty, no transcript is written (optional)")
	return cfg
}

func options() []ff.Option {
	return []ff.Option{
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ffyaml.Parser),
		ff.WithAllowMissingConfigFile(true),
		ff.WithEnvVarPrefix("GEMINI"),
	}
}

func newVersionCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "gemchat version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := Version
			if v == "" {
				if buildInfo, ok := debug.ReadBuildInfo(); ok {
					v = buildInfo.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			versionFields := []string{v}
			if Commit != "" {
				versionFields = append(versionFields, Commit)
			}
			if Date != "" {
				versionFields = append(versionFields, Date)
			}
			fmt.Println(strings.Join(versionFields, " "))
			return nil
		},
	}
}
