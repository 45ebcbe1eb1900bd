package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/fabfab/resume-interviewer/api"
	"github.com/fabfab/resume-interviewer/config"
	"github.com/fabfab/resume-interviewer/embeddings"
	"github.com/fabfab/resume-interviewer/index"
	"github.com/fabfab/resume-interviewer/ingestion"
	"github.com/fabfab/resume-interviewer/interview"
	"github.com/fabfab/resume-interviewer/llm"
	"github.com/fabfab/resume-interviewer/persona"
	"github.com/fabfab/resume-interviewer/resume"
	"github.com/fabfab/resume-interviewer/session"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "interview":
		interviewCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	port := flags.Int("port", cfg.API.Port, "port for the HTTP API")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	store, err := resume.NewStore(cfg.Resume.TempDir, cfg.Resume.TTL, logger)
	if err != nil {
		logger.Fatalf("resume store setup: %v", err)
	}
	defer store.Close()

	registry := session.NewRegistry(embedder, llmClient, logger, session.Options{
		MaxSessions: cfg.Session.MaxSessions,
		IdleTimeout: cfg.Session.IdleTimeout,
	})
	registry.StartJanitor(ctx, cfg.Session.SweepInterval)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: api.New(registry, store, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("interview API listening on :%d (llm=%s/%s, embeddings=%s/%s)",
		*port, cfg.LLM.Provider, cfg.LLM.Model, cfg.Embeddings.Provider, cfg.Embeddings.Model)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func interviewCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("interview", flag.ExitOnError)
	resumePath := flags.String("resume", "", "path to the resume file (pdf, md, or txt)")
	style := flags.String("style", persona.DefaultID, "interviewer persona: critical, partner, or guide")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse interview flags: %v", err)
	}

	if strings.TrimSpace(*resumePath) == "" {
		fmt.Print("Enter the resume file path: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*resumePath = strings.Trim(strings.TrimSpace(scanner.Text()), `"'`)
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read resume path: %v", err)
		}
	}
	if *resumePath == "" {
		logger.Fatal("no resume file provided")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tpl := persona.Resolve(*style)
	printBanner(tpl)

	data, err := os.ReadFile(*resumePath)
	if err != nil {
		logger.Fatalf("read resume: %v", err)
	}

	fmt.Printf("Loading resume: %s\n", filepath.Base(*resumePath))
	chunks, err := ingestion.Ingest(ingestion.Document{Name: filepath.Base(*resumePath), Data: data})
	if err != nil {
		logger.Fatalf("ingest resume: %v", err)
	}
	fmt.Printf("Resume loaded, %d text chunks\n", len(chunks))

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	fmt.Println("Preparing the interviewer...")
	idx, err := index.Build(ctx, embedder, chunks)
	if err != nil {
		logger.Fatalf("build knowledge index: %v", err)
	}

	engine := interview.NewEngine(idx, tpl, llmClient, logger)
	runInterview(ctx, engine)
}

func runInterview(ctx context.Context, engine *interview.Engine) {
	interviewer := color.New(color.FgCyan, color.Bold)

	fmt.Println(strings.Repeat("-", 50))
	fmt.Println("Type 'quit' or 'exit' to end the interview")
	fmt.Println(strings.Repeat("-", 50))
	fmt.Println()

	opening, err := engine.Open(ctx)
	if err != nil {
		opening = interview.CannedOpening
	}
	interviewer.Print("[Interviewer]: ")
	fmt.Printf("%s\n\n", opening)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("[You]: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			interviewer.Print("\n[Interviewer]: ")
			fmt.Println("Alright, that is all for today. Thank you for your time, we will get back to you soon. Goodbye!")
			break
		}

		reply, err := engine.Invoke(ctx, input)
		if err != nil {
			fmt.Printf("\nSomething went wrong: %v\n\n", err)
			continue
		}
		interviewer.Print("\n[Interviewer]: ")
		fmt.Printf("%s\n\n", reply)
	}

	engine.Close()
}

func printBanner(tpl persona.Template) {
	banner := color.New(color.FgYellow, color.Bold)
	line := strings.Repeat("=", 50)

	fmt.Println()
	fmt.Println(line)
	banner.Println("   Resume Interviewer")
	fmt.Println(line)
	fmt.Printf("   %s\n", tpl.Tagline)
	fmt.Println(line)
	fmt.Println()
}

func printUsage() {
	fmt.Println("Usage: resume-interviewer <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve      Run the HTTP interview API")
	fmt.Println("  interview  Run an interactive interview in the terminal (use --resume and --style)")
}
