// Package bedrock implements the text-generation collaborator against
// Anthropic Claude models on AWS Bedrock.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	defaultModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 4000
	temperature      = 0.3
)

// Generator invokes a Claude model through the Bedrock runtime.
type Generator struct {
	client  *bedrockruntime.Client
	config  aws.Config
	modelID string
	logger  *slog.Logger
}

// NewGenerator creates a Bedrock generator using the default AWS credential
// chain for the given region.
func NewGenerator(ctx context.Context, region, modelID string, logger *slog.Logger) (*Generator, error) {
	if modelID == "" {
		modelID = defaultModelID
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &Generator{
		client:  bedrockruntime.NewFromConfig(cfg),
		config:  cfg,
		modelID: modelID,
		logger:  logger.With("module", "bedrock"),
	}, nil
}

type messagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Generate runs one synchronous completion for the prompt and returns the
// concatenated text blocks of the response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	output, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("model invocation failed: %w", err)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse model response: %w", err)
	}

	text := ""
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	if text == "" {
		return "", fmt.Errorf("model response has no text content (stop reason %q)", parsed.StopReason)
	}

	g.logger.DebugContext(ctx, "Generation completed",
		"model", g.modelID,
		"stop_reason", parsed.StopReason,
	)

	return text, nil
}

// Model identifies the underlying model, for logging and health output.
func (g *Generator) Model() string {
	return g.modelID
}

// HealthCheck verifies AWS credentials resolve. It does not invoke the
// model: a probe completion per health poll would bill real tokens.
func (g *Generator) HealthCheck(ctx context.Context) error {
	_, err := g.config.Credentials.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("bedrock credentials unavailable: %w", err)
	}

	return nil
}
