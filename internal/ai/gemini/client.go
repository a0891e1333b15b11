package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/logger"
	"github.com/spigell/fitscore/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// ProviderName identifies this backend in logs, metrics and errors.
	ProviderName = "gemini"

	defaultModel        = "gemini-2.5-pro"
	defaultMaxLogLength = 200
)

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator evaluates scoring prompts with the Gemini API.
type Generator struct {
	models    modelsAPI
	modelName string
	logger    *zap.Logger
	maxLogLen int
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, log *zap.Logger, maxLogLength int) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, model, log, maxLogLength), nil
}

func newGenerator(models modelsAPI, model string, log *zap.Logger, maxLogLength int) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Generator{
		models:    models,
		modelName: model,
		logger:    logger.WithCommonFields(log, ProviderName, model),
		maxLogLen: maxLogLength,
	}
}

// Evaluate sends the request to Gemini with temperature 0 and the request seed,
// asking for a JSON reply, and returns the concatenated text parts.
func (g *Generator) Evaluate(ctx context.Context, req ai.Request) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		Seed:             genai.Ptr(int32(req.Seed)),
		ResponseMIMEType: "application/json",
	}
	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	g.logger.Debug("gemini generate content request",
		zap.String(logger.FieldPhase, req.Phase.String()),
		zap.Int64("seed", req.Seed),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, g.maxLogLen)),
	)

	resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), config)
	if err != nil {
		return "", classify(req.Phase, err)
	}

	var builder strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				text := strings.TrimSpace(part.Text)
				if text == "" {
					continue
				}
				if builder.Len() > 0 {
					builder.WriteString("\n")
				}
				builder.WriteString(text)
			}
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", &ai.EvaluationError{Provider: ProviderName, Phase: req.Phase, Err: errors.New("empty response")}
	}

	g.logger.Debug("gemini generate content response",
		zap.String(logger.FieldPhase, req.Phase.String()),
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func classify(phase ai.Phase, err error) error {
	evalErr := &ai.EvaluationError{Provider: ProviderName, Phase: phase, Err: err}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		evalErr.Temporary = apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
		evalErr.RetryAfter = retryAfter(apiErr)
		return evalErr
	}

	evalErr.Temporary = ai.TransientTransport(err)
	return evalErr
}

// retryAfter reads the delay from a RetryInfo detail, falling back to the
// human readable message.
func retryAfter(apiErr genai.APIError) time.Duration {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}

	match := retryAfterPattern.FindStringSubmatch(apiErr.Message)
	if match == nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
