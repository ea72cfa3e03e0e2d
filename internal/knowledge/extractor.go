package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/llm"
)

// ErrExtractionParse marks extraction output that could not be decoded.
// Extract absorbs it into an empty result.
var ErrExtractionParse = errors.New("unparseable extraction output")

// ExtractorConfig holds configuration for the knowledge extractor.
type ExtractorConfig struct {
	MaxTokens   int
	Temperature float64
}

// DefaultExtractorConfig returns sensible defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxTokens:   1024,
		Temperature: 0.2,
	}
}

// ExtractionResult partitions the knowledge points a solution relied on.
// UsedExisting is always a subset of the IDs passed to Extract.
type ExtractionResult struct {
	UsedExisting []int   `json:"used_existing"`
	New          []Draft `json:"new"`
}

// Empty reports whether nothing was extracted.
func (r ExtractionResult) Empty() bool {
	return len(r.UsedExisting) == 0 && len(r.New) == 0
}

// Extractor asks the LLM which knowledge points a solution used.
type Extractor struct {
	provider llm.Provider
	cfg      ExtractorConfig
	logger   *zap.Logger
}

// NewExtractor creates an LLM-backed extractor.
func NewExtractor(provider llm.Provider, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, cfg: cfg, logger: logger}
}

type extractionOutput struct {
	UsedExistingIDs []int   `json:"used_existing_ids"`
	NewPoints       []Draft `json:"new_points"`
}

// Extract classifies the knowledge points used by solution into points
// from existing (by ID) and newly proposed drafts. existing may be empty,
// in which case everything found is returned as new.
//
// Unparseable model output yields an empty result and a nil error. Only a
// hard provider failure is returned as an error.
func (e *Extractor) Extract(ctx context.Context, question, solution string, existing []View) (ExtractionResult, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeExtract)

	userMsg, err := buildExtractionMessage(question, solution, existing)
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("build extraction prompt: %w", err)
	}

	resp, err := e.provider.Generate(ctx, llm.Request{
		System: extractionSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
		Schema:      ExtractionSchema,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		if llm.IsMalformed(err) {
			e.logger.Debug("extraction output rejected", zap.Error(err))
			return ExtractionResult{}, nil
		}
		return ExtractionResult{}, fmt.Errorf("LLM extraction failed: %w", err)
	}

	raw, err := parseExtraction(resp.Content)
	if err != nil {
		e.logger.Debug("extraction output absorbed", zap.Error(err))
		return ExtractionResult{}, nil
	}

	return reconcile(raw, existing), nil
}

func parseExtraction(content []byte) (extractionOutput, error) {
	var raw extractionOutput
	if err := llm.ParseStructured(content, &raw); err != nil {
		return extractionOutput{}, fmt.Errorf("%w: %v", ErrExtractionParse, err)
	}
	return raw, nil
}

// reconcile filters model output against the input set. Foreign IDs are
// dropped. Drafts that are incomplete, duplicated, or restate an input
// point are dropped; a restated point with a known ID counts as used.
func reconcile(raw extractionOutput, existing []View) ExtractionResult {
	byID := make(map[int]bool, len(existing))
	byIdentity := make(map[Identity]int, len(existing))
	for _, v := range existing {
		if v.ID > 0 {
			byID[v.ID] = true
		}
		byIdentity[v.Identity().Normalize()] = v.ID
	}

	var res ExtractionResult
	used := make(map[int]bool)
	markUsed := func(id int) {
		if id > 0 && byID[id] && !used[id] {
			used[id] = true
			res.UsedExisting = append(res.UsedExisting, id)
		}
	}

	for _, id := range raw.UsedExistingIDs {
		markUsed(id)
	}

	seen := make(map[Identity]bool)
	for _, d := range raw.NewPoints {
		d = d.Normalize()
		key := d.Identity()
		if key.Validate() != nil || seen[key] {
			continue
		}
		if id, ok := byIdentity[key]; ok {
			markUsed(id)
			continue
		}
		seen[key] = true
		res.New = append(res.New, d)
	}

	return res
}
