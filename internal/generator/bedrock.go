package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockClient generates content through AWS Bedrock (Claude). All traffic
// stays inside AWS, which some deployments require for campaign copy.
type BedrockClient struct {
	client         *bedrockruntime.Client
	defaultModelID string
	region         string
}

// bedrockRequest is the Anthropic messages payload for InvokeModel.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

type bedrockMessage struct {
	Role    string                `json:"role"`
	Content []bedrockContentBlock `json:"content"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockClient creates a Bedrock-backed generator using the default AWS
// credential chain. defaultModelID is used when a campaign's ai_agent_id is
// not a Bedrock model id.
func NewBedrockClient(ctx context.Context, region, defaultModelID string) (*BedrockClient, error) {
	if region == "" {
		region = "us-east-1"
	}
	if defaultModelID == "" {
		defaultModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	log.Printf("[Bedrock] Initialized generator (model=%s, region=%s)", defaultModelID, region)
	return &BedrockClient{
		client:         bedrockruntime.NewFromConfig(cfg),
		defaultModelID: defaultModelID,
		region:         region,
	}, nil
}

// Generate invokes the model with the prompt as a single user turn.
func (c *BedrockClient) Generate(ctx context.Context, prompt, modelID string) (string, error) {
	model := c.resolveModel(modelID)

	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        500,
		Temperature:      0.8,
		Messages: []bedrockMessage{{
			Role:    "user",
			Content: []bedrockContentBlock{{Type: "text", Text: prompt}},
		}},
	})
	if err != nil {
		return "", &Error{Backend: "bedrock", ModelID: model, Err: err}
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", &Error{Backend: "bedrock", ModelID: model, Err: err}
	}

	var parsed bedrockResponse
	if err := json.Unmarshal(output.Body, &parsed); err != nil {
		return "", &Error{Backend: "bedrock", ModelID: model, Err: fmt.Errorf("parse response: %w", err)}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return "", &Error{Backend: "bedrock", ModelID: model, Err: ErrEmptyContent}
	}

	log.Printf("[Bedrock] Generated %d tokens out (%d in)", parsed.Usage.OutputTokens, parsed.Usage.InputTokens)
	return out, nil
}

// resolveModel maps a campaign's model id onto Bedrock. Campaigns created
// for the OpenRouter backend carry ids like "openai/gpt-3.5-turbo"; those
// fall back to the configured Bedrock default.
func (c *BedrockClient) resolveModel(modelID string) string {
	m := strings.TrimSpace(modelID)
	if m == "" || strings.Contains(m, "/") {
		return c.defaultModelID
	}
	return m
}
