package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

// stubClient builds a Client whose remote operation is replaced by fn.
func stubClient(fn func(ctx context.Context, prompt string) (string, error)) *Client {
	return &Client{
		modelName: "test-model",
		timeout:   time.Second,
		generate:  fn,
	}
}

func countingStub(calls *int, text string, err error) *Client {
	return stubClient(func(context.Context, string) (string, error) {
		*calls++
		return text, err
	})
}

func TestNextEmptyHistoryNeverCallsRemote(t *testing.T) {
	calls := 0
	c := countingStub(&calls, "", errors.New("must not be called"))

	q := c.Next(context.Background(), domain.QuestionRequest{})
	require.Equal(t, OpeningQuestion, q)
	require.Zero(t, calls)

	// Deterministic across invocations.
	require.Equal(t, q, c.Next(context.Background(), domain.QuestionRequest{}))
}

func TestNextParsesStructuredOutput(t *testing.T) {
	c := stubClient(func(context.Context, string) (string, error) {
		return `Here it is: {"question":"What trade-offs did you make?","follow_up_possible":true}`, nil
	})

	q := c.Next(context.Background(), domain.QuestionRequest{
		History: []domain.Turn{{Question: "Q1", Answer: "A1"}},
	})
	require.Equal(t, "What trade-offs did you make?", q.Text)
	require.True(t, q.FollowUpPossible)
}

func TestNextFallbacksPerFailureClass(t *testing.T) {
	history := []domain.Turn{{Question: "Q1", Answer: "A1"}}

	tests := []struct {
		name string
		text string
		err  error
		want domain.Question
	}{
		{name: "remote error", err: errors.New("boom"), want: fallbackQuestionRemote},
		{name: "no JSON", text: "plain text reply", want: fallbackQuestionNoJSON},
		{name: "wrong shape", text: `{"question":""}`, want: fallbackQuestionBadShape},
		{name: "unparsable", text: `{"question":12,"follow_up_possible":"no"}`, want: fallbackQuestionParse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := stubClient(func(context.Context, string) (string, error) {
				return tc.text, tc.err
			})
			q := c.Next(context.Background(), domain.QuestionRequest{History: history})
			require.Equal(t, tc.want, q)
		})
	}
}

func TestScoreRemoteFailureReturnsNeutralFallback(t *testing.T) {
	c := stubClient(func(context.Context, string) (string, error) {
		return "", errors.New("network down")
	})

	fb := c.Score(context.Background(), domain.ScoreRequest{
		Question: "Q", Answer: "A",
	})
	require.Equal(t, domain.SentimentNeutral, fb.Sentiment)
	require.Equal(t, 50, fb.Engagement)
	require.Equal(t, 50, fb.Confidence)
	require.Empty(t, fb.Keywords)
	require.NotEmpty(t, fb.ContentNote)
}

func TestScoreMalformedOutputReturnsNeutralFallback(t *testing.T) {
	for name, text := range map[string]string{
		"no JSON":     "your answer was fine",
		"wrong shape": `{"content":"c"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := stubClient(func(context.Context, string) (string, error) {
				return text, nil
			})
			fb := c.Score(context.Background(), domain.ScoreRequest{Question: "Q", Answer: "A"})
			require.Equal(t, domain.SentimentNeutral, fb.Sentiment)
			require.Equal(t, 50, fb.Engagement)
			require.Equal(t, 50, fb.Confidence)
			require.NotEmpty(t, fb.ContentNote)
		})
	}
}

func TestScoreParsesAndClampsStructuredOutput(t *testing.T) {
	c := stubClient(func(context.Context, string) (string, error) {
		return `{"content":"solid","tone":"calm","clarity":"crisp","sentiment":"positive","engagement":92,"confidence":88,"keywords":["kafka"]}`, nil
	})

	fb := c.Score(context.Background(), domain.ScoreRequest{Question: "Q", Answer: "A"})
	require.Equal(t, domain.SentimentPositive, fb.Sentiment)
	require.Equal(t, 92, fb.Engagement)
	require.Equal(t, 88, fb.Confidence)
	require.Equal(t, []string{"kafka"}, fb.Keywords)
}
