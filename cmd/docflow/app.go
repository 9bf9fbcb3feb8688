package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/DocFlow/internal/agents"
	"github.com/BTreeMap/DocFlow/internal/autosession"
	"github.com/BTreeMap/DocFlow/internal/capture"
	"github.com/BTreeMap/DocFlow/internal/config"
	"github.com/BTreeMap/DocFlow/internal/conversation"
	"github.com/BTreeMap/DocFlow/internal/genai"
	"github.com/BTreeMap/DocFlow/internal/lockfile"
	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/progress"
	"github.com/BTreeMap/DocFlow/internal/questions"
	"github.com/BTreeMap/DocFlow/internal/recovery"
	"github.com/BTreeMap/DocFlow/internal/router"
	"github.com/BTreeMap/DocFlow/internal/store"
	"github.com/BTreeMap/DocFlow/internal/workflow"
)

// app holds every wired component of a running DocFlow process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	lock  *lockfile.Lock
	store store.Store
	redis *store.RedisKVStore

	capture      *capture.MarkdownCapture
	orchestrator *workflow.Orchestrator
	progress     *progress.Tracker
	engine       *conversation.Engine
	agents       *agents.Directory
	router       *router.SessionRouter
	autoSession  *autosession.Manager
}

// newApp locks the state directory, opens storage, wires the components and
// recovers sessions that were active when the last process stopped.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.lock, err = lockfile.AcquireLock(cfg.StateDir); err != nil {
		return nil, err
	}

	a.store, err = store.Open(cfg.Database.DSN, store.WithMaxTurnsPerSession(cfg.Database.MaxTurnsPerSession))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var kv store.KVStore = a.store
	if cfg.Redis.Addr != "" {
		if a.redis, err = store.NewRedisKVStore(ctx, cfg.Redis.Addr, cfg.Redis.Prefix); err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		kv = a.redis
	}

	llm, err := newLLM(cfg)
	if err != nil {
		return nil, err
	}

	gen, err := newQuestionGenerator(cfg, llm)
	if err != nil {
		return nil, err
	}

	a.capture = capture.NewMarkdownCapture()
	a.orchestrator = workflow.NewOrchestrator(a.capture,
		workflow.WithQualityAssessor(a.capture),
		workflow.WithLogger(logger))
	a.progress = progress.NewTracker()
	a.progress.Subscribe(func(s models.ProgressSnapshot) {
		logger.Debug("Progress updated", "sessionID", s.SessionID, "score", s.CompletionScore,
			"answered", s.QuestionsAnswered, "remaining", s.EstimatedTimeRemaining)
	})
	a.engine = conversation.NewEngine(a.store, gen, questions.NewHeuristicAnalyzer(), a.orchestrator,
		conversation.WithContentCapture(a.capture),
		conversation.WithProgressTracker(a.progress),
		conversation.WithLogger(logger))

	agentList := cfg.Agents
	if len(agentList) == 0 {
		agentList = agents.DefaultAgents()
	}
	if llm != nil {
		a.agents, err = agents.NewDirectory(agentList, llm)
	} else {
		a.agents, err = agents.NewDirectory(agentList, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("loading agents: %w", err)
	}

	a.router = router.NewSessionRouter(a.engine, a.agents, router.WithLogger(logger))
	a.autoSession = autosession.NewManager(kv,
		autosession.WithTimeout(cfg.AutoSession.Timeout),
		autosession.WithLogger(logger))

	rm := recovery.NewRecoveryManager(a.store)
	rm.RegisterRecoverable(recovery.ActiveSessionRecovery{})
	rm.RegisterSessionRecovery(recovery.RouterRecoveryHandler(a.router))
	if err := rm.RecoverAll(ctx); err != nil {
		logger.Warn("Session recovery incomplete", "error", err)
	}
	return a, nil
}

// newLLM returns the language-model client, or nil when no API key is configured.
func newLLM(cfg *config.Config) (*genai.Client, error) {
	if cfg.OpenAI.APIKey == "" {
		slog.Info("No OpenAI API key configured, running without model-backed replies")
		return nil, nil
	}
	opts := []genai.Option{genai.WithAPIKey(cfg.OpenAI.APIKey), genai.WithModel(cfg.OpenAI.Model)}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, genai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client, err := genai.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return client, nil
}

// newQuestionGenerator loads the question bank and layers model follow-ups on top when available.
func newQuestionGenerator(cfg *config.Config, llm *genai.Client) (conversation.QuestionGenerator, error) {
	bank := questions.DefaultBank()
	if cfg.Questions.BankPath != "" {
		b, err := questions.LoadBank(cfg.Questions.BankPath)
		if err != nil {
			return nil, fmt.Errorf("loading question bank: %w", err)
		}
		bank = b
	}
	gen := questions.NewBankGenerator(bank)
	if llm == nil {
		return gen, nil
	}
	return questions.NewGenAIFollowups(gen, llm, cfg.OpenAI.MaxFollowups), nil
}

// Close releases storage and the state directory lock.
func (a *app) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Release())
	}
	return errors.Join(errs...)
}
