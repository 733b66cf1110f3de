package llm

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

const questionSystemPrompt = `You are an AI interviewer. Based on the candidate's resume (if provided) and experience level, generate a relevant interview question. Previous questions and answers are provided below. Do NOT repeat previous questions. Ask ONLY one question at a time.

IMPORTANT: Your response MUST ALWAYS be a valid JSON object in the format { "question": "...", "follow_up_possible": true/false }. If you do not have enough context, you MUST still return a generic interview question as a JSON object. Never reply with plain text or ask for more context.`

const questionInstruction = `Generate the next interview question based on the provided context and history. Ensure it is relevant and encourages detailed responses.

Format the response as a JSON object: { "question": "string", "follow_up_possible": boolean }.

If you do not have enough context, you MUST still return a generic interview question in the required JSON format. Never reply with plain text or ask for more context.`

// BuildQuestionPrompt renders the next-question request as one prompt.
func BuildQuestionPrompt(req domain.QuestionRequest) string {
	var b strings.Builder
	b.WriteString(questionSystemPrompt)
	b.WriteString("\n\nResume: ")
	b.WriteString(req.ResumeText)
	b.WriteString("\nExperience Level: ")
	b.WriteString(string(req.ExperienceLevel))
	b.WriteString("\n\nPrevious questions and answers:\n")
	for _, turn := range req.History {
		fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n", turn.Question, turn.Answer)
	}
	b.WriteString("\n")
	b.WriteString(questionInstruction)
	return b.String()
}

// BuildScorePrompt renders one answered question as a scoring request.
func BuildScorePrompt(req domain.ScoreRequest) string {
	return fmt.Sprintf(
		`Analyze the following interview response based on the question and the candidate's resume (if provided). Provide feedback on content, tone, and clarity. Also, provide a sentiment (positive, neutral, negative), engagement score (0-100), confidence score (0-100), and extract key points/keywords from the answer. Format the response as a JSON object: { "content": "string", "tone": "string", "clarity": "string", "sentiment": "positive"|"neutral"|"negative", "engagement": number, "confidence": number, "keywords": string[] }.

Question: %s
Answer: %s
Resume: %s`,
		req.Question, req.Answer, req.ResumeText,
	)
}
