// Package report turns a finished interview snapshot into a downloadable
// zip archive: the raw data as JSON, a readable HTML report, and the
// recorded answer audio.
package report

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/PabloGalante/intervu-api/internal/domain"
)

const (
	dataFileName   = "interview_data.json"
	reportFileName = "interview_report.html"
)

type exportMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	AudioFile string    `json:"audio_file,omitempty"`
}

type exportFeedback struct {
	Content    string   `json:"content"`
	Tone       string   `json:"tone"`
	Clarity    string   `json:"clarity"`
	Sentiment  string   `json:"sentiment"`
	Engagement int      `json:"engagement"`
	Confidence int      `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

type exportData struct {
	SessionID       string           `json:"session_id"`
	ExperienceLevel string           `json:"experience_level"`
	State           string           `json:"state"`
	DurationSec     int              `json:"duration_seconds"`
	ExportedAt      time.Time        `json:"exported_at"`
	Messages        []exportMessage  `json:"messages"`
	Feedback        []exportFeedback `json:"feedback"`
}

// Summary aggregates the per-turn feedback into the report's closing block.
type Summary struct {
	Questions     int
	AvgEngagement int
	AvgConfidence int
	Sentiment     domain.Sentiment
	Strengths     []string
	Improvements  []string
}

// Summarize folds the feedback list into averages and the two advice lists.
func Summarize(feedback []domain.Feedback) Summary {
	s := Summary{Questions: len(feedback), Sentiment: domain.SentimentNeutral}
	if len(feedback) == 0 {
		return s
	}

	positives := 0
	negatives := 0
	for _, fb := range feedback {
		s.AvgEngagement += fb.Engagement
		s.AvgConfidence += fb.Confidence
		switch fb.Sentiment {
		case domain.SentimentPositive:
			positives++
		case domain.SentimentNegative:
			negatives++
		}
	}
	s.AvgEngagement /= len(feedback)
	s.AvgConfidence /= len(feedback)

	switch {
	case positives > len(feedback)/2:
		s.Sentiment = domain.SentimentPositive
	case negatives > len(feedback)/2:
		s.Sentiment = domain.SentimentNegative
	}

	if s.AvgEngagement >= 60 {
		s.Strengths = append(s.Strengths, "Kept the interviewer engaged with substantive answers.")
	} else {
		s.Improvements = append(s.Improvements, "Expand answers with concrete examples to raise engagement.")
	}
	if s.AvgConfidence >= 60 {
		s.Strengths = append(s.Strengths, "Answers came across as confident and well structured.")
	} else {
		s.Improvements = append(s.Improvements, "Practice delivering answers with a more assertive tone.")
	}
	if s.Sentiment == domain.SentimentPositive {
		s.Strengths = append(s.Strengths, "Overall positive impression across the interview.")
	}
	if s.Sentiment == domain.SentimentNegative {
		s.Improvements = append(s.Improvements, "Reframe negative phrasing toward outcomes and learnings.")
	}
	return s
}

// WriteArchive writes the full report zip for one snapshot to w.
func WriteArchive(w io.Writer, snap *domain.SessionSnapshot) error {
	zw := zip.NewWriter(w)

	if err := writeData(zw, snap); err != nil {
		return fmt.Errorf("write %s: %w", dataFileName, err)
	}
	if err := writeHTML(zw, snap); err != nil {
		return fmt.Errorf("write %s: %w", reportFileName, err)
	}
	for i, clip := range snap.Audio {
		f, err := zw.Create(fmt.Sprintf("audio_%d.webm", i))
		if err != nil {
			return err
		}
		if _, err := f.Write(clip.Data); err != nil {
			return err
		}
	}

	return zw.Close()
}

func writeData(zw *zip.Writer, snap *domain.SessionSnapshot) error {
	data := exportData{
		SessionID:       string(snap.Session.ID),
		ExperienceLevel: string(snap.Session.ExperienceLevel),
		State:           string(snap.State),
		DurationSec:     snap.ElapsedSec,
		ExportedAt:      snap.ExportedAt,
	}

	audioIndex := 0
	for _, msg := range snap.Messages {
		m := exportMessage{
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}
		if msg.AudioRef != "" {
			m.AudioFile = fmt.Sprintf("audio_%d.webm", audioIndex)
			audioIndex++
		}
		data.Messages = append(data.Messages, m)
	}
	for _, fb := range snap.Feedback {
		data.Feedback = append(data.Feedback, exportFeedback{
			Content:    fb.ContentNote,
			Tone:       fb.ToneNote,
			Clarity:    fb.ClarityNote,
			Sentiment:  string(fb.Sentiment),
			Engagement: fb.Engagement,
			Confidence: fb.Confidence,
			Keywords:   fb.Keywords,
		})
	}

	f, err := zw.Create(dataFileName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

type reportTurn struct {
	Number   int
	Question string
	Answer   string
	Feedback *domain.Feedback
}

type reportView struct {
	SessionID       string
	ExperienceLevel string
	Date            string
	Duration        string
	Intro           string
	Turns           []reportTurn
	Summary         Summary
}

func writeHTML(zw *zip.Writer, snap *domain.SessionSnapshot) error {
	view := reportView{
		SessionID:       string(snap.Session.ID),
		ExperienceLevel: string(snap.Session.ExperienceLevel),
		Date:            snap.ExportedAt.Format("January 2, 2006"),
		Duration:        formatDuration(snap.ElapsedSec),
		Summary:         Summarize(snap.Feedback),
	}

	// The greeting appended at session creation precedes the first question;
	// it renders as a note, never as a numbered turn.
	msgs := snap.Messages
	if len(msgs) > 0 && msgs[0].Role == domain.RoleAssistant &&
		(len(msgs) == 1 || msgs[1].Role == domain.RoleAssistant) {
		view.Intro = msgs[0].Content
		msgs = msgs[1:]
	}

	feedbackByAnswer := make(map[domain.MessageID]domain.Feedback, len(snap.Feedback))
	for _, fb := range snap.Feedback {
		feedbackByAnswer[fb.MessageID] = fb
	}

	// Pair questions with the answer that follows each one; feedback travels
	// with the answer it analyzed.
	var current *reportTurn
	for _, msg := range msgs {
		switch msg.Role {
		case domain.RoleAssistant:
			view.Turns = append(view.Turns, reportTurn{
				Number:   len(view.Turns) + 1,
				Question: msg.Content,
			})
			current = &view.Turns[len(view.Turns)-1]
		case domain.RoleUser:
			if current != nil {
				current.Answer = msg.Content
				if fb, ok := feedbackByAnswer[msg.ID]; ok {
					current.Feedback = &fb
				}
			}
		}
	}

	f, err := zw.Create(reportFileName)
	if err != nil {
		return err
	}
	return reportTemplate.Execute(f, view)
}

func formatDuration(seconds int) string {
	m := seconds / 60
	s := seconds % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Interview Report</title>
<style>
  body { font-family: Arial, Helvetica, sans-serif; max-width: 800px; margin: 40px auto; color: #222; }
  h1 { border-bottom: 2px solid #4a6cf7; padding-bottom: 8px; }
  .meta { color: #666; margin-bottom: 24px; }
  .intro { color: #555; font-style: italic; margin-bottom: 24px; }
  .turn { border: 1px solid #ddd; border-radius: 8px; padding: 16px; margin-bottom: 16px; }
  .question { font-weight: bold; }
  .answer { margin: 8px 0; white-space: pre-wrap; }
  .feedback { background: #f5f7ff; border-radius: 6px; padding: 10px; font-size: 0.95em; }
  .scores span { display: inline-block; margin-right: 16px; }
  .summary { background: #f0fff4; border: 1px solid #b7e4c7; border-radius: 8px; padding: 16px; }
  ul { margin: 4px 0; }
</style>
</head>
<body>
<h1>Interview Report</h1>
<div class="meta">
  Session {{.SessionID}} · {{.ExperienceLevel}} · {{.Date}} · Duration {{.Duration}}
</div>

{{if .Intro}}<p class="intro">{{.Intro}}</p>{{end}}

{{range .Turns}}
<div class="turn">
  <div class="question">Q{{.Number}}: {{.Question}}</div>
  <div class="answer">{{if .Answer}}{{.Answer}}{{else}}<em>No answer recorded.</em>{{end}}</div>
  {{with .Feedback}}
  <div class="feedback">
    <p>{{.ContentNote}}</p>
    <p>{{.ToneNote}}</p>
    <p>{{.ClarityNote}}</p>
    <div class="scores">
      <span>Sentiment: {{.Sentiment}}</span>
      <span>Engagement: {{.Engagement}}/100</span>
      <span>Confidence: {{.Confidence}}/100</span>
    </div>
  </div>
  {{end}}
</div>
{{end}}

<div class="summary">
  <h2>Summary</h2>
  <p>Questions answered: {{.Summary.Questions}} · Average engagement: {{.Summary.AvgEngagement}}/100 · Average confidence: {{.Summary.AvgConfidence}}/100 · Overall sentiment: {{.Summary.Sentiment}}</p>
  {{if .Summary.Strengths}}
  <h3>Strengths</h3>
  <ul>{{range .Summary.Strengths}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
  {{if .Summary.Improvements}}
  <h3>Areas for Improvement</h3>
  <ul>{{range .Summary.Improvements}}<li>{{.}}</li>{{end}}</ul>
  {{end}}
</div>
</body>
</html>
`))
