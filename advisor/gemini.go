package advisor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"churn-insight/churn"

	"google.golang.org/genai"
)

type GeminiClient struct {
	client *genai.Client
	ctx    context.Context
}

func NewGeminiClient() (*GeminiClient, error) {
	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}

	return &GeminiClient{
		client: client,
		ctx:    ctx,
	}, nil
}

const systemPrompt = `You are a retention analyst for a streaming subscription business.
You receive a live analytics snapshot (risk KPIs, per-segment metrics, alerts) and answer
questions about customer churn risk and retention tactics.

Provide helpful, accurate, and concise responses. Be technical when needed but explain
metrics clearly. Keep responses conversational and under 200 words unless more detail is
specifically requested.`

// GenerateBrief answers a question against the current analytics snapshot.
func (g *GeminiClient) GenerateBrief(snapshot churn.AnalyticsSnapshot, question string) (string, error) {
	message := fmt.Sprintf("%s\n\nCurrent snapshot:\n%s", question, summarizeSnapshot(snapshot))

	systemInstruction := genai.NewContentFromText(systemPrompt, genai.RoleModel)
	userContent := genai.NewContentFromText(message, genai.RoleUser)

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
		Temperature:       genai.Ptr(float32(0.7)),
		TopP:              genai.Ptr(float32(0.8)),
		TopK:              genai.Ptr(float32(40)),
		MaxOutputTokens:   int32(200),
	}

	resp, err := g.client.Models.GenerateContent(
		g.ctx,
		"gemini-2.5-flash",
		[]*genai.Content{userContent},
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %v", err)
	}

	text := resp.Text()
	if text == "" {
		return "I'm sorry, I couldn't generate a response. Please try rephrasing your question.", nil
	}

	return strings.ReplaceAll(text, "*", ""), nil
}

// summarizeSnapshot renders the snapshot into a compact prompt context.
func summarizeSnapshot(snapshot churn.AnalyticsSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sessions: %d, avg risk: %.2f%%, predicted churners: %d\n",
		snapshot.KPIs.ActiveSessions, snapshot.KPIs.AvgRisk, snapshot.KPIs.PredictedChurners)
	fmt.Fprintf(&b, "Model: accuracy %.2f%%, precision %.2f%%, recall %.2f%%, F1 %.2f%%\n",
		snapshot.ModelStats.Accuracy, snapshot.ModelStats.Precision,
		snapshot.ModelStats.Recall, snapshot.ModelStats.F1)

	for _, segment := range snapshot.Segments {
		fmt.Fprintf(&b, "Segment %s: %d users, avg risk %.2f%%, satisfaction %.2f\n",
			segment.Segment, segment.ActiveUsers, segment.AvgRisk, segment.AvgSatisfaction)
	}
	for _, alert := range snapshot.Alerts {
		fmt.Fprintf(&b, "Alert [%s] %s (load %.2f)\n", alert.Severity, alert.Message, alert.Load)
	}

	return b.String()
}

func (g *GeminiClient) Close() error {
	// The client doesn't have an explicit Close method; resources are
	// managed automatically.
	return nil
}
