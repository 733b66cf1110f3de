package llm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

var errQuestionShape = errors.New("question JSON has incorrect structure")

// extractJSONObject finds the first balanced JSON object in free-form model
// output. Models sometimes wrap the object in prose or markdown fences.
func extractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}

	return "", false
}

type questionPayload struct {
	Question         *string `json:"question"`
	FollowUpPossible *bool   `json:"follow_up_possible"`
}

// decodeQuestion parses and validates a question object. Both fields are
// required; anything else is rejected so the caller can fall back.
func decodeQuestion(raw string) (domain.Question, error) {
	var p questionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Question{}, fmt.Errorf("parse question JSON: %w", err)
	}
	if p.Question == nil || *p.Question == "" || p.FollowUpPossible == nil {
		return domain.Question{}, errQuestionShape
	}
	return domain.Question{
		Text:             *p.Question,
		FollowUpPossible: *p.FollowUpPossible,
	}, nil
}

type feedbackPayload struct {
	Content    *string   `json:"content"`
	Tone       *string   `json:"tone"`
	Clarity    *string   `json:"clarity"`
	Sentiment  *string   `json:"sentiment"`
	Engagement *float64  `json:"engagement"`
	Confidence *float64  `json:"confidence"`
	Keywords   []string  `json:"keywords"`
}

// decodeFeedback parses and validates a feedback object. Scores are clamped
// to [0,100] and sentiment is coerced to the enumerated values; a missing
// required field rejects the whole object.
func decodeFeedback(raw string) (domain.Feedback, error) {
	var p feedbackPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Feedback{}, fmt.Errorf("parse feedback JSON: %w", err)
	}
	if p.Content == nil || p.Tone == nil || p.Clarity == nil ||
		p.Sentiment == nil || p.Engagement == nil || p.Confidence == nil {
		return domain.Feedback{}, errFeedbackShape
	}

	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	return domain.Feedback{
		ContentNote: *p.Content,
		ToneNote:    *p.Tone,
		ClarityNote: *p.Clarity,
		Sentiment:   coerceSentiment(*p.Sentiment),
		Engagement:  clampScore(int(*p.Engagement)),
		Confidence:  clampScore(int(*p.Confidence)),
		Keywords:    keywords,
	}, nil
}

func coerceSentiment(s string) domain.Sentiment {
	switch domain.Sentiment(s) {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
		return domain.Sentiment(s)
	default:
		return domain.SentimentNeutral
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
