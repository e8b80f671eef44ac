package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/commentflow/internal/agents"
	"github.com/user/commentflow/internal/enrich"
	"github.com/user/commentflow/internal/instagram"
	"github.com/user/commentflow/internal/notify"
	"github.com/user/commentflow/internal/orchestrator"
	"github.com/user/commentflow/internal/pipeline"
	"github.com/user/commentflow/internal/scheduler"
	"github.com/user/commentflow/internal/state"
	"github.com/user/commentflow/internal/telegram"
	"github.com/user/commentflow/internal/types"
	"github.com/user/commentflow/internal/webhook"
	"github.com/user/commentflow/pkg/llm"
	"github.com/user/commentflow/pkg/llm/openai"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the commentflow daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "commentflow.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Stores
	comments := state.NewCommentStore(cfg.DataDir)
	media := state.NewMediaStore(cfg.DataDir)
	ledger := state.NewLedger(cfg.DataDir)
	classifications := state.NewClassificationStore(cfg.DataDir)
	sessions := state.NewSessionStore(cfg.DataDir)
	tasks := state.NewTaskStore(cfg.DataDir)
	locks := state.NewLockManager(cfg.DataDir)
	outcomes := state.NewOutcomeStore(cfg.DataDir)

	// LLM provider
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})

	builder, err := agents.NewContextBuilder(cfg.LLM.Model, 4000)
	if err != nil {
		return fmt.Errorf("create context builder: %w", err)
	}

	// Agents
	classifier := agents.NewClassifier(provider, builder, cfg.LLM.Model)
	responder := agents.NewResponder(provider, builder, cfg.LLM.Model)
	analyzer := enrich.NewMediaAnalyzer(provider, cfg.LLM.VisionModel)
	documents := enrich.NewDocumentProvider(cfg.Documents.Sources, 15*time.Minute)

	// Platform client
	graph := instagram.New(instagram.Config{
		BaseURL:     cfg.Instagram.BaseURL,
		AccessToken: cfg.Instagram.AccessToken,
	})

	// Operator alerts
	alerts := notify.NewRegistry()
	alerts.Register("log", func(ctx context.Context, message string) error {
		slog.Warn("operator alert", "message", message)
		return nil
	})
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := telegram.New(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		alerts.Register("telegram", notifier.NotifyOperator)
		slog.Info("telegram alerts enabled")
	} else {
		slog.Warn("telegram alerts disabled (no token or chat_id)")
	}

	// Pipeline
	pipe := pipeline.New(pipeline.Deps{
		Comments:         comments,
		Media:            media,
		Ledger:           ledger,
		Classifications:  classifications,
		Sessions:         sessions,
		Tasks:            tasks,
		Lock:             locks,
		Outcomes:         outcomes,
		Classifier:       classifier,
		Decider:          responder,
		Analyzer:         analyzer,
		Documents:        documents,
		Fetcher:          graph,
		Replies:          graph,
		Hider:            graph,
		Operator:         alerts,
		EnrichmentPolicy: agents.DefaultEnrichmentPolicy,
		NotifyPolicy:     agents.DefaultNotifyPolicy,
		Logger:           slog.Default(),
	}, pipeline.Options{
		MaxTurns:    cfg.MaxTurns,
		BotUsername: cfg.Instagram.BotUsername,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Orchestrator
	orch := orchestrator.New(tasks, int64(cfg.MaxConcurrent), slog.Default())
	orch.Register(types.TaskClassify, pipe.HandleClassify, orchestrator.DefaultRetryPolicy())
	orch.Register(types.TaskEnrich, pipe.HandleEnrich, orchestrator.DefaultRetryPolicy())
	orch.Register(types.TaskDecide, pipe.HandleDecide, orchestrator.DefaultRetryPolicy())
	orch.Register(types.TaskActReply, pipe.HandleActReply, orchestrator.ActionRetryPolicy())
	orch.Register(types.TaskActHide, pipe.HandleActHide, orchestrator.ActionRetryPolicy())
	orch.Register(types.TaskActNotify, pipe.HandleActNotify, orchestrator.ActionRetryPolicy())
	orch.OnDead(pipe.HandleDeadTask)
	orch.Start(ctx)
	defer orch.Stop()

	// Scheduler: lease reaper + dead-task reports
	sched := scheduler.New(tasks, func(ctx context.Context, dead []*types.Task) {
		summary := fmt.Sprintf("%d dead tasks need attention", len(dead))
		for i, task := range dead {
			if i == 10 {
				summary += "\n..."
				break
			}
			summary += fmt.Sprintf("\n%s %s (comment %s): %s",
				task.ID, task.Kind, task.CommentID, task.LastError)
		}
		if err := alerts.NotifyOperator(ctx, summary); err != nil {
			slog.Error("dead-task report failed", "error", err)
		}
	}, slog.Default())
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// Webhook HTTP server
	srv := webhook.NewServer(pipe, comments, tasks, sessions, outcomes, cfg.Instagram.VerifyToken, slog.Default())
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv,
	}
	go func() {
		slog.Info("webhook server started", "listen", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	slog.Info("commentflow started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"llm_model", cfg.LLM.Model,
		"vision_model", cfg.LLM.VisionModel,
		"document_sources", len(cfg.Documents.Sources),
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
