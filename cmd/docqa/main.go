package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/pipeline"
	"github.com/dgallion1/docqa/internal/tui"
)

const usage = `Usage: docqa [flags] <command> [args]

Commands:
  ingest <file>      index a .pdf, .docx or .txt document
  ask [question]     answer a question; with no question, read questions from stdin until "exit"
  tui                interactive terminal UI

Flags:
`

func main() {
	_ = godotenv.Load()

	var (
		session string
		topK    int
	)
	flag.StringVar(&session, "session", pipeline.DefaultSession, "session ID the document is indexed under")
	flag.IntVar(&topK, "top-k", 0, "chunks to retrieve per question (0 uses TOP_K)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	// Logs go to stderr so answers on stdout stay clean. The TUI owns the
	// terminal, so it logs nothing.
	logOut := io.Writer(os.Stderr)
	if args[0] == "tui" {
		logOut = io.Discard
	}
	log := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, _, closeDeps, err := pipeline.BuildDeps(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer closeDeps()
	orch := pipeline.NewOrchestrator(cfg, deps, log)

	if err := run(ctx, orch, args, session, topK); err != nil {
		fmt.Fprintf(os.Stderr, "docqa: %v\n", err)
		closeDeps()
		os.Exit(1)
	}
}

func run(ctx context.Context, orch *pipeline.Orchestrator, args []string, session string, topK int) error {
	switch args[0] {
	case "ingest":
		if len(args) != 2 {
			return errors.New("usage: docqa ingest <file>")
		}
		res, err := orch.Ingest(ctx, session, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("indexed %s: %d chunks (%s) in %dms\n", res.Filename, res.Chunks, res.Model, res.DurationMs)
		return nil

	case "ask":
		if len(args) > 1 {
			return ask(ctx, orch, os.Stdout, session, strings.Join(args[1:], " "), topK)
		}
		return askLoop(ctx, orch, os.Stdin, os.Stdout, session, topK)

	case "tui":
		m := tui.New(ctx, orch, session, topK)
		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func ask(ctx context.Context, orch *pipeline.Orchestrator, w io.Writer, session, question string, topK int) error {
	a, err := orch.Ask(ctx, session, question, topK)
	if errors.Is(err, pipeline.ErrNoDocumentIndexed) {
		return errors.New("please index a document first (docqa ingest <file>)")
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Answer: %s\n", a.Text)
	return nil
}

// askLoop answers questions read line by line until "exit" or EOF.
func askLoop(ctx context.Context, orch *pipeline.Orchestrator, r io.Reader, w io.Writer, session string, topK int) error {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "Question (or exit): ")
		if !sc.Scan() {
			fmt.Fprintln(w)
			return sc.Err()
		}
		q := strings.TrimSpace(sc.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		if err := ask(ctx, orch, w, session, q, topK); err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
