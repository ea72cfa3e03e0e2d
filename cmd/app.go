package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/config"
	"github.com/abhisek/mistakebook/internal/knowledge"
	"github.com/abhisek/mistakebook/internal/llm"
	"github.com/abhisek/mistakebook/internal/logging"
	"github.com/abhisek/mistakebook/internal/metrics"
	"github.com/abhisek/mistakebook/internal/notebook"
	"github.com/abhisek/mistakebook/internal/ocr"
	"github.com/abhisek/mistakebook/internal/solving"
	"github.com/abhisek/mistakebook/internal/store"
)

// app holds the dependencies a command runs against.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	metrics *metrics.Metrics
	svc     *notebook.Service

	closers []io.Closer
}

// appOptions selects the optional parts of the graph.
type appOptions struct {
	// llm builds the provider-backed solver, assessor and OCR. Without it
	// the service can only read and record.
	llm bool
}

// newApp loads configuration, opens the store, and builds the notebook
// service.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st, metrics: metrics.New()}
	a.closers = append(a.closers, st)
	logger.Debug("store opened", zap.String("path", dbPath))

	deps := notebook.Deps{
		Questions: st.QuestionRepo(),
		Knowledge: st.KnowledgeRepo(),
		Marks:     st.MarkRepo(),
	}

	if opts.llm {
		if err := cfg.LLM.Validate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("LLM provider not configured: %w", err)
		}
		provider, err := llm.NewProvider(ctx, cfg.LLM, st.EventRepo(), logger)
		if err != nil {
			a.Close()
			return nil, err
		}

		deps.Solver = newWorkflow(provider, cfg, a.metrics, logger)
		deps.Assessor = knowledge.NewAssessor(provider, knowledge.DefaultAssessorConfig(), logger)

		extractor, err := a.newOCR(cmd, provider)
		if err != nil {
			logger.Warn("image upload disabled", zap.Error(err))
		} else {
			deps.OCR = extractor
		}
	}

	a.svc = notebook.New(deps, notebook.Config{
		CompletenessThreshold: cfg.Solve.CompletenessThreshold,
		Concurrency:           cfg.Solve.Concurrency,
	}, logger)
	return a, nil
}

func newWorkflow(provider llm.Provider, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *solving.Workflow {
	genCfg := solving.DefaultGeneratorConfig()
	if cfg.Solve.MaxTokens > 0 {
		genCfg.MaxTokens = cfg.Solve.MaxTokens
	}
	genCfg.Temperature = cfg.Solve.Temperature

	return solving.NewWorkflow(
		solving.NewGenerator(provider, genCfg),
		solving.NewReviewer(provider, solving.DefaultReviewerConfig()),
		knowledge.NewExtractor(provider, knowledge.DefaultExtractorConfig(), logger),
		solving.Config{MaxAttempts: cfg.Solve.MaxAttempts},
		solving.WithLogger(logger),
		solving.WithObserver(m),
	)
}

func (a *app) newOCR(cmd *cobra.Command, provider llm.Provider) (ocr.Extractor, error) {
	switch a.cfg.OCR.Backend {
	case "vision":
		vcfg := a.cfg.OCR.Vision
		if vcfg.MaxBytes == 0 {
			vcfg.MaxBytes = a.cfg.OCR.MaxBytes
		}
		v, err := ocr.NewVisionExtractor(cmd.Context(), vcfg, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, v)
		return v, nil
	default:
		lcfg := a.cfg.OCR.LLM
		if lcfg.MaxBytes == 0 {
			lcfg.MaxBytes = a.cfg.OCR.MaxBytes
		}
		return ocr.NewLLMExtractor(provider, lcfg, a.logger), nil
	}
}

// Close releases everything newApp opened, newest first.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	_ = a.logger.Sync()
	return first
}

// openStore opens only the database, for commands that do not need the
// service.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
