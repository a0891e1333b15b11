// Package openai evaluates scoring prompts with the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"
	"github.com/spigell/fitscore/internal/ai"
	"github.com/spigell/fitscore/internal/logger"
	"github.com/spigell/fitscore/internal/utils"
	"go.uber.org/zap"
)

const (
	// ProviderName identifies this backend in logs, metrics and errors.
	ProviderName = "openai"

	defaultModel        = "gpt-4o-mini"
	defaultMaxLogLength = 200
)

type completionsAPI interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Client wraps the chat completions service.
type Client struct {
	completions completionsAPI
	modelName   string
	logger      *zap.Logger
	maxLogLen   int
}

// NewClient builds a client for the OpenAI API. SDK level retries are disabled,
// ai.WithRetry owns the retry policy.
func NewClient(apiKey, model string, log *zap.Logger, maxLogLength int) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	client := sdk.NewClient(
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)

	return newClient(&client.Chat.Completions, model, log, maxLogLength), nil
}

func newClient(completions completionsAPI, model string, log *zap.Logger, maxLogLength int) *Client {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Client{
		completions: completions,
		modelName:   model,
		logger:      logger.WithCommonFields(log, ProviderName, model),
		maxLogLen:   maxLogLength,
	}
}

// Evaluate sends the request as a system + user message pair with temperature 0,
// the request seed and JSON object output.
func (c *Client) Evaluate(ctx context.Context, req ai.Request) (string, error) {
	if c == nil || c.completions == nil {
		return "", errors.New("openai client is not initialized")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, sdk.SystemMessage(system))
	}
	messages = append(messages, sdk.UserMessage(prompt))

	params := sdk.ChatCompletionNewParams{
		Messages:    messages,
		Model:       sdk.ChatModel(c.modelName),
		Temperature: sdk.Float(0),
		Seed:        sdk.Int(req.Seed),
		ResponseFormat: sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{
				Type: constant.JSONObject("json_object"),
			},
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}

	c.logger.Debug("openai chat completion request",
		zap.String(logger.FieldPhase, req.Phase.String()),
		zap.Int64("seed", req.Seed),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, c.maxLogLen)),
	)

	completion, err := c.completions.New(ctx, params)
	if err != nil {
		return "", classify(req.Phase, err)
	}

	if completion == nil || len(completion.Choices) == 0 {
		return "", &ai.EvaluationError{Provider: ProviderName, Phase: req.Phase, Err: errors.New("no choices returned")}
	}

	choice := completion.Choices[0]
	output := strings.TrimSpace(choice.Message.Content)
	if output == "" {
		reason := "empty response"
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			reason = fmt.Sprintf("model refused: %s", refusal)
		}
		return "", &ai.EvaluationError{Provider: ProviderName, Phase: req.Phase, Err: errors.New(reason)}
	}

	c.logger.Debug("openai chat completion response",
		zap.String(logger.FieldPhase, req.Phase.String()),
		zap.String("finish_reason", choice.FinishReason),
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
	)

	return output, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.modelName
}

func classify(phase ai.Phase, err error) error {
	evalErr := &ai.EvaluationError{Provider: ProviderName, Phase: phase, Err: err}

	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		evalErr.Temporary = apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
		if apiErr.Response != nil {
			evalErr.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return evalErr
	}

	evalErr.Temporary = ai.TransientTransport(err)
	return evalErr
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
