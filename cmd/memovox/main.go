// Command memovox runs the voice-memo transcription service: an HTTP API
// for managing recordings and a background pipeline that converts audio,
// streams it through a speech-recognition server, and revises punctuation
// with an LLM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/memovox/config"
	"github.com/skillsenselab/memovox/llm/openai"
	"github.com/skillsenselab/memovox/logger"
	"github.com/skillsenselab/memovox/media"
	"github.com/skillsenselab/memovox/observability"
	"github.com/skillsenselab/memovox/queue"
	"github.com/skillsenselab/memovox/revise"
	"github.com/skillsenselab/memovox/server"
	"github.com/skillsenselab/memovox/store"
	"github.com/skillsenselab/memovox/store/memory"
	"github.com/skillsenselab/memovox/store/sqlite"
	"github.com/skillsenselab/memovox/transcription/whisper"
	"github.com/skillsenselab/memovox/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "memovox:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "path to config.yml")
		envFile     = flag.String("env", "", "path to .env file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return nil
	}

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		return err
	}

	logger.Init(cfg.Logger, "memovox")
	log := logger.Global()
	log.Info("starting", logger.Fields(
		"version", version.String(),
		"environment", cfg.Environment,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", logger.ErrorFields("shutdown", err))
		}
	}()

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	recognizer := whisper.NewClient(cfg.Whisper, log)
	if !recognizer.IsAvailable(ctx) {
		log.Warn("transcription server unreachable, jobs will fail until it comes up",
			logger.Fields("url", cfg.Whisper.URL))
	}

	var reviser *revise.Reviser
	if cfg.OpenAI.APIKey != "" {
		reviser = revise.New(openai.NewProvider(cfg.OpenAI), log)
	} else {
		log.Warn("no OpenAI API key configured, punctuation revision disabled")
	}

	converter := &media.Converter{
		FFmpegBinary:  cfg.Media.FFmpegBinary,
		FFprobeBinary: cfg.Media.FFprobeBinary,
	}

	metrics, err := observability.NewPipelineMetrics()
	if err != nil {
		return fmt.Errorf("creating pipeline metrics: %w", err)
	}

	q := queue.New(st, recognizer, reviser, converter, log, metrics, queue.Config{
		Language:          cfg.Queue.Language,
		InitialPrompt:     cfg.Queue.InitialPrompt,
		RecoverProcessing: cfg.Queue.RecoverProcessing,
		ProgressInterval:  cfg.Queue.ProgressInterval,
	})
	if err := q.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing queue: %w", err)
	}
	q.Start(ctx)

	handlers := server.NewHandlers(st, q, recognizer, cfg.Queue.MergeTarget, log)
	srv := server.New(cfg.Server, handlers, log)
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("server stop", logger.ErrorFields("shutdown", err))
	}
	q.Wait()
	return nil
}

func openStore(cfg *config.Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.Open(cfg.Store.Path, log)
	}
}
