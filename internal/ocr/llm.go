package ocr

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/mistakebook/internal/llm"
)

const (
	ocrSystemPrompt = "You are an OCR assistant. Transcribe the text in the image exactly, " +
		"including mathematical formulas and scientific symbols. Keep the original layout " +
		"and do not omit any characters. Output only the transcription."

	questionPrompt = "Extract the full text of the question in this photo, including any " +
		"answer options. Keep the original formatting."

	answerPrompt = "Extract only the answer shown in this photo. Do not transcribe the " +
		"question. If the photo contains no answer, reply with exactly: None"
)

// LLMConfig configures the vision-LLM backend.
type LLMConfig struct {
	MaxTokens int `koanf:"max_tokens"`
	MaxBytes  int `koanf:"max_bytes"`
}

// LLMExtractor transcribes images with a vision-capable LLM provider.
type LLMExtractor struct {
	provider llm.Provider
	cfg      LLMConfig
	logger   *zap.Logger
}

// NewLLMExtractor returns an Extractor backed by provider. The provider must
// accept image parts.
func NewLLMExtractor(provider llm.Provider, cfg LLMConfig, logger *zap.Logger) *LLMExtractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{provider: provider, cfg: cfg, logger: logger}
}

func (e *LLMExtractor) ExtractText(ctx context.Context, image []byte, mode Mode) (string, error) {
	mime, err := Validate(image, e.cfg.MaxBytes)
	if err != nil {
		return "", err
	}

	prompt := questionPrompt
	if mode == ModeAnswer {
		prompt = answerPrompt
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, llm.PurposeOCR), llm.Request{
		System: ocrSystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: prompt,
			Images:  []llm.Image{{MIMEType: mime, Data: image}},
		}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", unavailable(err)
	}

	text := strings.TrimSpace(resp.Text)
	if mode == ModeAnswer && strings.EqualFold(strings.Trim(text, ".\"' "), "none") {
		text = ""
	}
	e.logger.Debug("llm text extracted",
		zap.String("mode", string(mode)),
		zap.Int("chars", len(text)),
	)
	return text, nil
}
