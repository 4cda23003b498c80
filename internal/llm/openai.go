package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/azimhamza/safe-replies-backend-sub001/internal/models"
	"github.com/azimhamza/safe-replies-backend-sub001/internal/moderation"
)

// Client talks to an OpenAI-compatible API for classification and embeddings.
// All completions run in JSON mode so responses decode into typed structs.
type Client struct {
	http           *retryablehttp.Client
	baseURL        string
	apiKey         string
	classifyModel  string
	embeddingModel string
	logger         *zap.Logger
}

func NewClient(baseURL, apiKey, classifyModel, embeddingModel string, logger *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 60 * time.Second
	rc.Logger = nil

	return &Client{
		http:           rc,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		apiKey:         apiKey,
		classifyModel:  classifyModel,
		embeddingModel: embeddingModel,
		logger:         logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chatJSON(ctx context.Context, system, user string, out interface{}) error {
	reqBody := chatRequest{
		Model: c.classifyModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0,
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat completion status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var cr chatResponse
	if err = json.Unmarshal(body, &cr); err != nil {
		return fmt.Errorf("decoding chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return fmt.Errorf("chat completion returned no choices")
	}

	if err = json.Unmarshal([]byte(cr.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("decoding model output: %w", err)
	}
	return nil
}

const classifySystemPrompt = `You are a content moderation classifier for social media comments.
Classify the comment into exactly one category: blackmail, threat, defamation, harassment, spam, or benign.
blackmail means a demand for payment or a favor under threat of harm, exposure, or reporting.
threat means stated intent to harm without a payment demand.
defamation means false factual accusations presented as truth.
harassment means targeted abuse or insults.
spam means unsolicited promotional content.
Extract any payment handles, contact info, or links as identifiers.
Respond with JSON: {"category": string, "severity": integer 0-100, "confidence": number 0-1, "rationale": string, "identifiers": [{"kind": "payment_handle"|"contact_info"|"url"|"other", "value": string}]}`

// Classify sends one comment for classification. Custom filter prompts and
// the best similarity match, when present, travel in the user message as
// additional context.
func (c *Client) Classify(ctx context.Context, text string, filters []models.CustomFilter, simCtx *moderation.SimilarityContext) (models.Classification, error) {
	var sb strings.Builder
	sb.WriteString("Comment:\n")
	sb.WriteString(text)

	var semantic []models.CustomFilter
	for _, f := range filters {
		if f.Semantic {
			semantic = append(semantic, f)
		}
	}
	if len(semantic) > 0 {
		sb.WriteString("\n\nThe account owner also wants the following caught:\n")
		for _, f := range semantic {
			sb.WriteString("- ")
			sb.WriteString(f.Prompt)
			sb.WriteString("\n")
		}
	}
	if simCtx != nil {
		verdict := "previously actioned"
		if simCtx.Allowed {
			verdict = "previously reviewed and allowed"
		}
		fmt.Fprintf(&sb, "\n\nA %s comment is %.0f%% similar: %q\n", verdict, simCtx.Similarity*100, simCtx.MatchedText)
	}

	var cls models.Classification
	if err := c.chatJSON(ctx, classifySystemPrompt, sb.String(), &cls); err != nil {
		return models.Classification{}, err
	}
	clampClassification(&cls)
	return cls, nil
}

const reEvaluateSystemPrompt = `You are re-checking a content moderation verdict.
A rule-based detector believes the comment belongs to a specific category; your first pass disagreed.
Weigh the detector's evidence and either confirm the suspected category or keep your own verdict.
Respond with JSON: {"category": string, "severity": integer 0-100, "confidence": number 0-1, "rationale": string, "identifiers": [{"kind": string, "value": string}]}`

// ReEvaluate asks for a second opinion when the pattern detector and first
// classification disagree.
func (c *Client) ReEvaluate(ctx context.Context, text string, suspected models.Category, evidence string) (models.Classification, error) {
	user := fmt.Sprintf("Comment:\n%s\n\nSuspected category: %s\nDetector evidence: %s", text, suspected, evidence)

	var cls models.Classification
	if err := c.chatJSON(ctx, reEvaluateSystemPrompt, user, &cls); err != nil {
		return models.Classification{}, err
	}
	clampClassification(&cls)
	return cls, nil
}

const matchFiltersSystemPrompt = `You match a social media comment against a numbered list of content descriptions.
Respond with JSON: {"matches": [list of matching numbers]}. An empty list means no description matches.`

// MatchFilterDescriptions batch-matches the comment against semantic filters
// in a single call, returning the ids of the filters that matched.
func (c *Client) MatchFilterDescriptions(ctx context.Context, text string, filters []models.CustomFilter) ([]primitive.ObjectID, error) {
	if len(filters) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Comment:\n")
	sb.WriteString(text)
	sb.WriteString("\n\nDescriptions:\n")
	for i, f := range filters {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, f.Prompt)
	}

	var out struct {
		Matches []int `json:"matches"`
	}
	if err := c.chatJSON(ctx, matchFiltersSystemPrompt, sb.String(), &out); err != nil {
		return nil, err
	}

	var ids []primitive.ObjectID
	for _, n := range out.Matches {
		if n < 1 || n > len(filters) {
			c.logger.Warn("filter match index out of range", zap.Int("index", n))
			continue
		}
		ids = append(ids, filters[n-1].ID)
	}
	return ids, nil
}

const analyzeURLSystemPrompt = `You assess whether a link found in a social media comment is suspicious.
Respond with JSON: {"is_suspicious": bool, "contains_payment_solicitation": bool, "link_type": string, "rationale": string}`

func (c *Client) AnalyzeURL(ctx context.Context, url string) (models.URLAnalysis, error) {
	var out models.URLAnalysis
	if err := c.chatJSON(ctx, analyzeURLSystemPrompt, "Link: "+url, &out); err != nil {
		return models.URLAnalysis{}, err
	}
	return out, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding vector for the text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embeddingRequest{Model: c.embeddingModel, Input: text})
	if err != nil {
		return nil, fmt.Errorf("encoding embedding request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var er embeddingResponse
	if err = json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(er.Data) == 0 {
		return nil, fmt.Errorf("embedding response has no data")
	}
	return er.Data[0].Embedding, nil
}

func clampClassification(cls *models.Classification) {
	if cls.Severity < 0 {
		cls.Severity = 0
	}
	if cls.Severity > 100 {
		cls.Severity = 100
	}
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	cls.Category = models.Category(strings.ToLower(string(cls.Category)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
