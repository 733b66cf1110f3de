package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// mockQuestions mirrors the scripted question bank used before the remote
// interviewer existed.
var mockQuestions = []string{
	"Tell me about yourself and your background.",
	"What are your greatest strengths and how have you applied them in your previous roles?",
	"Describe a challenging situation you faced at work and how you handled it.",
	"Why are you interested in this position and what can you bring to the role?",
	"Where do you see yourself in five years?",
}

// MockInterviewer is a deterministic QuestionSource + ResponseScorer for
// local mode and tests.
type MockInterviewer struct {
	mu sync.Mutex
}

func NewMockInterviewer() *MockInterviewer {
	return &MockInterviewer{}
}

func (m *MockInterviewer) Next(_ context.Context, req domain.QuestionRequest) domain.Question {
	if len(req.History) == 0 {
		return OpeningQuestion
	}
	idx := len(req.History) % len(mockQuestions)
	return domain.Question{Text: mockQuestions[idx], FollowUpPossible: idx < len(mockQuestions)-1}
}

func (m *MockInterviewer) Score(_ context.Context, req domain.ScoreRequest) domain.Feedback {
	words := strings.Fields(req.Answer)

	sentiment := domain.SentimentNeutral
	if len(words) >= 20 {
		sentiment = domain.SentimentPositive
	}

	keywords := words
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	return domain.Feedback{
		ContentNote: "Your answer was comprehensive and highlighted relevant experience. Consider providing more specific examples of achievements with metrics.",
		ToneNote:    "Professional and confident. Maintain consistent volume throughout your response.",
		ClarityNote: "Well-structured response. Try to reduce filler words like 'um' and 'like' for improved clarity.",
		Sentiment:   sentiment,
		Engagement:  clampScore(40 + 2*len(words)),
		Confidence:  clampScore(45 + len(words)),
		Keywords:    keywords,
	}
}
