package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/ignite/churn-radar/internal/config"
	"github.com/ignite/churn-radar/internal/pkg/logger"
	"github.com/ignite/churn-radar/internal/storage"
)

const (
	anthropicVersion  = "bedrock-2023-05-31"
	defaultModelID    = "anthropic.claude-3-haiku-20240307-v1:0"
	defaultMaxTokens  = 1024
	defaultSampleRows = 20
)

// Invoker is the subset of the Bedrock runtime client the suggester uses.
type Invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature"`
}

type invokeResponse struct {
	Content []contentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// BedrockSuggester implements Suggester with an Anthropic model on AWS
// Bedrock.
type BedrockSuggester struct {
	client       Invoker
	modelID      string
	maxTokens    int
	sampleRows   int
	allowWeights bool
	timeout      time.Duration
}

// NewBedrockSuggester builds a suggester from configuration using the
// default AWS credential chain for cfg.Region.
func NewBedrockSuggester(ctx context.Context, cfg config.BedrockConfig) (*BedrockSuggester, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Region, "", "", "")
	if err != nil {
		return nil, err
	}
	return NewBedrockSuggesterWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewBedrockSuggesterWithClient builds a suggester around an existing
// client.
func NewBedrockSuggesterWithClient(client Invoker, cfg config.BedrockConfig) *BedrockSuggester {
	s := &BedrockSuggester{
		client:       client,
		modelID:      cfg.ModelID,
		maxTokens:    cfg.MaxTokens,
		sampleRows:   cfg.SampleRows,
		allowWeights: cfg.AllowWeights,
		timeout:      cfg.Timeout(),
	}
	if s.modelID == "" {
		s.modelID = defaultModelID
	}
	if s.maxTokens <= 0 {
		s.maxTokens = defaultMaxTokens
	}
	if s.sampleRows <= 0 {
		s.sampleRows = defaultSampleRows
	}
	return s
}

// Suggest sends a sample of req.Profiles to the model and merges its reply
// onto the default rule set.
func (s *BedrockSuggester) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	rows := req.SampleRows
	if rows <= 0 {
		rows = s.sampleRows
	}
	userPrompt, err := buildUserPrompt(sampleProfiles(req.Profiles, rows))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        s.maxTokens,
		System:           buildSystemPrompt(),
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: userPrompt}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke: %w", err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("parse bedrock response: %w", err)
	}
	var text string
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	r, err := parseReply(text)
	if err != nil {
		return nil, err
	}
	rules, adopted, err := merge(r, s.allowWeights)
	if err != nil {
		return nil, err
	}

	logger.Info("threshold suggestion received",
		"model", s.modelID,
		"adopted", len(adopted),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	return &Suggestion{Rules: rules, Rationale: r.Rationale, Adopted: adopted, ModelID: s.modelID}, nil
}
