package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/observability"
)

// OpeningQuestion is the fixed first question. It is returned without any
// remote call so a session can always begin, even with the collaborator down.
var OpeningQuestion = domain.Question{
	Text:             "Tell me about yourself and your professional background.",
	FollowUpPossible: true,
}

// Generic fallback questions, one per failure class. The conversation never
// stalls because of a formatting problem downstream.
var (
	fallbackQuestionBadShape = domain.Question{
		Text:             "I'm sorry, I couldn't generate a question right now. Could you tell me about a project you're proud of?",
		FollowUpPossible: true,
	}
	fallbackQuestionParse = domain.Question{
		Text:             "Could you tell me about your experience with a specific technology mentioned in your resume?",
		FollowUpPossible: true,
	}
	fallbackQuestionNoJSON = OpeningQuestion
	fallbackQuestionRemote = domain.Question{
		Text:             "I encountered an issue. Could you please describe your most recent professional accomplishment?",
		FollowUpPossible: true,
	}
)

// neutralFeedback builds the degraded feedback for one failure class. Scores
// are always 50/50 and sentiment neutral so a broken scorer is invisible to
// the session flow.
func neutralFeedback(content, tone, clarity string) domain.Feedback {
	return domain.Feedback{
		ContentNote: content,
		ToneNote:    tone,
		ClarityNote: clarity,
		Sentiment:   domain.SentimentNeutral,
		Engagement:  50,
		Confidence:  50,
		Keywords:    []string{},
	}
}

var errFeedbackShape = errors.New("feedback JSON has incorrect structure")

type ClientConfig struct {
	ProjectID string
	Location  string
	ModelName string

	// Timeout defensively bounds each remote call; fallbacks assume bounded
	// latency.
	Timeout time.Duration
}

// Client implements domain.QuestionSource and domain.ResponseScorer on
// Vertex AI (Gemini).
type Client struct {
	modelName string
	timeout   time.Duration

	// generate is the single remote text operation; split out so failure
	// paths are testable without a live backend.
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewGeminiClient creates the interview collaborator client.
func NewGeminiClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ProjectID == "" || cfg.Location == "" {
		return nil, fmt.Errorf("project and location must be set for the Gemini client")
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.0-flash-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.ProjectID,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		modelName: modelName,
		timeout:   timeout,
	}
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		return generateText(ctx, client, modelName, prompt)
	}
	return c, nil
}

func generateText(ctx context.Context, client *genai.Client, modelName, prompt string) (string, error) {
	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(2048)

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: outputTokens,
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	res, err := client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

// Next implements domain.QuestionSource.
func (c *Client) Next(ctx context.Context, req domain.QuestionRequest) domain.Question {
	if len(req.History) == 0 {
		return OpeningQuestion
	}

	log := observability.LoggerFromContext(ctx).With("op", "next_question", "turns", len(req.History))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.generate(ctx, BuildQuestionPrompt(req))
	if err != nil {
		log.Error("question generation failed, using fallback", "error", err)
		return fallbackQuestionRemote
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		log.Error("no JSON found in question response", "response", text)
		return fallbackQuestionNoJSON
	}

	question, err := decodeQuestion(raw)
	if err != nil {
		if errors.Is(err, errQuestionShape) {
			log.Error("question JSON has incorrect structure", "raw", raw)
			return fallbackQuestionBadShape
		}
		log.Error("failed to parse question JSON", "error", err)
		return fallbackQuestionParse
	}

	return question
}

// Score implements domain.ResponseScorer.
func (c *Client) Score(ctx context.Context, req domain.ScoreRequest) domain.Feedback {
	log := observability.LoggerFromContext(ctx).With("op", "score_response")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.generate(ctx, BuildScorePrompt(req))
	if err != nil {
		log.Error("response analysis failed, using neutral fallback", "error", err)
		return neutralFeedback(
			"An error occurred during feedback analysis. Please try again.",
			"Maintain a steady tone.",
			"Ensure your answers are easy to understand.",
		)
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		log.Error("no JSON found in feedback response", "response", text)
		return neutralFeedback(
			"Feedback generation failed. Ensure your response directly addresses the question.",
			"Maintain an engaged tone.",
			"Structure your response logically.",
		)
	}

	feedback, err := decodeFeedback(raw)
	if err != nil {
		if errors.Is(err, errFeedbackShape) {
			log.Error("feedback JSON has incorrect structure", "raw", raw)
			return neutralFeedback(
				"Could not generate detailed feedback. Ensure your response was clear.",
				"Please maintain a confident tone.",
				"Focus on clear and concise communication.",
			)
		}
		log.Error("failed to parse feedback JSON", "error", err)
		return neutralFeedback(
			"Feedback parsing failed. Focus on providing comprehensive answers.",
			"Ensure a professional tone.",
			"Speak clearly.",
		)
	}

	return feedback
}
