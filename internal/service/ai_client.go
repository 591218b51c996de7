package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storybook-server/internal/config"
	"storybook-server/internal/model"
)

var (
	// ErrAIGenerationFailed - ошибка при генерации текста моделью.
	ErrAIGenerationFailed = errors.New("ai text generation failed")
	// ErrPromptTooLong - промпт превышает бюджет токенов, запрос не отправлялся.
	ErrPromptTooLong = errors.New("prompt exceeds token budget")
)

// GenerationParams - параметры генерации. Указатели отличают 0 от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
}

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIClient интерфейс для взаимодействия с текстовой моделью.
type AIClient interface {
	// GenerateText генерирует текст на основе системного промпта и ввода пользователя.
	// operation используется только для метрик.
	GenerateText(ctx context.Context, operation, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error)
	// GenerateTextWithImages то же, но прикладывает к вводу изображения (data URI).
	GenerateTextWithImages(ctx context.Context, operation, systemPrompt, userInput string, images []string, params GenerationParams) (string, UsageInfo, error)
}

// --- OpenAI Client Implementation ---

type openAIClient struct {
	client    *openaigo.Client
	model     string
	maxTokens int
	tokens    *tokenEstimator
	logger    *zap.Logger
}

func (c *openAIClient) GenerateText(ctx context.Context, operation, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	return c.chat(ctx, operation, systemPrompt, userInput, nil, params)
}

func (c *openAIClient) GenerateTextWithImages(ctx context.Context, operation, systemPrompt, userInput string, images []string, params GenerationParams) (string, UsageInfo, error) {
	return c.chat(ctx, operation, systemPrompt, userInput, images, params)
}

func (c *openAIClient) chat(ctx context.Context, operation, systemPrompt, userInput string, images []string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("model", c.model), zap.String("operation", operation))

	if strings.TrimSpace(systemPrompt) == "" {
		observeRequest(c.model, operation, "error", 0)
		return "", usage, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}
	if err := c.tokens.checkBudget(c.model, c.maxTokens, systemPrompt, userInput); err != nil {
		observeRequest(c.model, operation, "error_prompt_too_long", 0)
		return "", usage, err
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if len(images) > 0 {
		parts := []openaigo.ChatMessagePart{{Type: openaigo.ChatMessagePartTypeText, Text: userInput}}
		for _, img := range images {
			parts = append(parts, openaigo.ChatMessagePart{
				Type:     openaigo.ChatMessagePartTypeImageURL,
				ImageURL: &openaigo.ChatMessageImageURL{URL: img, Detail: openaigo.ImageURLDetailLow},
			})
		}
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, MultiContent: parts})
	} else if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	req := openaigo.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: intVal(params.MaxTokens),
	}
	if params.Temperature != nil {
		req.Temperature = float32(*params.Temperature)
	}
	if params.TopP != nil {
		req.TopP = float32(*params.TopP)
	}

	startTime := time.Now()
	log.Debug("Sending chat completion request",
		zap.Int("system_prompt_bytes", len(systemPrompt)),
		zap.Int("user_input_bytes", len(userInput)),
		zap.Int("images", len(images)))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(startTime)
	if err != nil {
		log.Warn("Chat completion request failed", zap.Duration("duration", duration), zap.Error(err))
		observeRequest(c.model, operation, "error", duration.Seconds())
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn("Chat completion returned empty response", zap.Duration("duration", duration))
		observeRequest(c.model, operation, "error_empty_response", duration.Seconds())
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	observeRequest(c.model, operation, "success", duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		usage = UsageInfo{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		aiPromptTokens.WithLabelValues(c.model).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(usage.CompletionTokens))
	}

	text := resp.Choices[0].Message.Content
	log.Info("Chat completion received",
		zap.Duration("duration", duration),
		zap.Int("response_length", len(text)),
		zap.Int("total_tokens", usage.TotalTokens))
	return text, usage, nil
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

// --- Ollama Client Implementation ---

type ollamaClient struct {
	client    *api.Client
	model     string
	timeout   time.Duration
	maxTokens int
	tokens    *tokenEstimator
	logger    *zap.Logger
}

func newOllamaClient(cfg config.AIConfig, logger *zap.Logger) (*ollamaClient, error) {
	// api.NewClient ждет URL без суффикса /v1
	baseURL := strings.TrimSuffix(strings.TrimSuffix(cfg.OllamaURL, "/"), "/v1")
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", baseURL, err)
	}

	logger.Info("Ollama client created", zap.String("base_url", baseURL), zap.String("model", cfg.TextModel))
	return &ollamaClient{
		client:    api.NewClient(parsedURL, &http.Client{Timeout: cfg.Timeout}),
		model:     cfg.TextModel,
		timeout:   cfg.Timeout,
		maxTokens: cfg.MaxPromptTokens,
		tokens:    newTokenEstimator(),
		logger:    logger,
	}, nil
}

func (c *ollamaClient) GenerateText(ctx context.Context, operation, systemPrompt, userInput string, params GenerationParams) (string, UsageInfo, error) {
	return c.chat(ctx, operation, systemPrompt, userInput, nil, params)
}

func (c *ollamaClient) GenerateTextWithImages(ctx context.Context, operation, systemPrompt, userInput string, images []string, params GenerationParams) (string, UsageInfo, error) {
	return c.chat(ctx, operation, systemPrompt, userInput, images, params)
}

func (c *ollamaClient) chat(ctx context.Context, operation, systemPrompt, userInput string, images []string, params GenerationParams) (string, UsageInfo, error) {
	usage := UsageInfo{}
	log := c.logger.With(zap.String("model", c.model), zap.String("operation", operation))

	if strings.TrimSpace(systemPrompt) == "" {
		observeRequest(c.model, operation, "error", 0)
		return "", usage, fmt.Errorf("%w: system prompt is empty", ErrAIGenerationFailed)
	}
	if err := c.tokens.checkBudget(c.model, c.maxTokens, systemPrompt, userInput); err != nil {
		observeRequest(c.model, operation, "error_prompt_too_long", 0)
		return "", usage, err
	}

	messages := []api.Message{{Role: "system", Content: systemPrompt}}
	if userInput != "" || len(images) > 0 {
		userMsg := api.Message{Role: "user", Content: userInput}
		for _, img := range images {
			_, data, err := model.DecodeDataURI(img)
			if err != nil {
				return "", usage, fmt.Errorf("%w: attached image: %v", ErrAIGenerationFailed, err)
			}
			userMsg.Images = append(userMsg.Images, api.ImageData(data))
		}
		messages = append(messages, userMsg)
	}

	options := map[string]interface{}{}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Error(err))
		} else {
			log.Warn("Ollama request failed", zap.Duration("duration", duration), zap.Error(err))
		}
		observeRequest(c.model, operation, "error", duration.Seconds())
		return "", usage, fmt.Errorf("%w: %v", ErrAIGenerationFailed, err)
	}
	if resp.Message.Content == "" {
		log.Warn("Ollama returned empty response", zap.Duration("duration", duration))
		observeRequest(c.model, operation, "error_empty_response", duration.Seconds())
		return "", usage, fmt.Errorf("%w: empty response", ErrAIGenerationFailed)
	}

	observeRequest(c.model, operation, "success", duration.Seconds())
	usage = UsageInfo{
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
	}
	if usage.TotalTokens > 0 {
		aiPromptTokens.WithLabelValues(c.model).Observe(float64(usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(usage.CompletionTokens))
	}

	log.Info("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("response_length", len(resp.Message.Content)))
	return resp.Message.Content, usage, nil
}

// --- Token estimation ---

// tokenEstimator считает токены промпта через tiktoken. Если словарь для
// модели недоступен, используется cl100k_base, а при его отсутствии -
// грубая оценка 4 символа на токен.
type tokenEstimator struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

func newTokenEstimator() *tokenEstimator {
	return &tokenEstimator{encodings: make(map[string]*tiktoken.Tiktoken)}
}

func (t *tokenEstimator) count(modelName, text string) int {
	if enc := t.encoding(modelName); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

func (t *tokenEstimator) encoding(modelName string) *tiktoken.Tiktoken {
	t.mu.Lock()
	defer t.mu.Unlock()
	if enc, ok := t.encodings[modelName]; ok {
		return enc
	}
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	t.encodings[modelName] = enc
	return enc
}

func (t *tokenEstimator) checkBudget(modelName string, budget int, parts ...string) error {
	if budget <= 0 {
		return nil
	}
	total := 0
	for _, p := range parts {
		total += t.count(modelName, p)
	}
	if total > budget {
		return fmt.Errorf("%w: %d > %d", ErrPromptTooLong, total, budget)
	}
	return nil
}

// --- Factory Function ---

// NewAIClient создает клиент текстовой модели в зависимости от конфигурации.
func NewAIClient(cfg config.AIConfig, logger *zap.Logger) (AIClient, error) {
	logger = logger.Named("AIClient")
	switch strings.ToLower(cfg.Provider) {
	case config.AIProviderOpenAI:
		logger.Info("OpenAI client created",
			zap.String("base_url", cfg.BaseURL),
			zap.String("model", cfg.TextModel),
			zap.Duration("timeout", cfg.Timeout))
		return &openAIClient{
			client:    newOpenAIClient(cfg),
			model:     cfg.TextModel,
			maxTokens: cfg.MaxPromptTokens,
			tokens:    newTokenEstimator(),
			logger:    logger,
		}, nil
	case config.AIProviderOllama:
		return newOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown ai provider: %q", cfg.Provider)
	}
}

func newOpenAIClient(cfg config.AIConfig) *openaigo.Client {
	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return openaigo.NewClientWithConfig(openaiConfig)
}
