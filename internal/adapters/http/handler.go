package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PabloGalante/intervu-api/internal/app/interview"
	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/report"
)

type Server struct {
	svc   *interview.Service
	admin *adminAuth
}

func NewServer(svc *interview.Service, adminUsername, adminPassword string) http.Handler {
	s := &Server{
		svc:   svc,
		admin: newAdminAuth(adminUsername, adminPassword),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)

	// /sessions → create session (POST)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}           → GET: live session view, DELETE: teardown
	// /sessions/{id}/begin     → POST: start the interview
	// /sessions/{id}/listen    → POST: open the microphone
	// /sessions/{id}/answer    → POST: finalize the answer, get feedback
	// /sessions/{id}/continue  → POST: next question or completion
	// /sessions/{id}/camera    → POST: toggle the camera preview
	// /sessions/{id}/report    → GET: download the report archive
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	mux.HandleFunc("/admin/login", s.handleAdminLogin)
	mux.HandleFunc("/admin/sessions", s.admin.require(s.handleAdminSessions))

	return chainMiddlewares(mux, withLogging, withCORS)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createSessionRequest struct {
	UserID          string `json:"user_id"`
	ResumeText      string `json:"resume_text,omitempty"`
	ExperienceLevel string `json:"experience_level,omitempty"`
}

type createSessionResponse struct {
	Session sessionResponse  `json:"session"`
	Welcome *messageResponse `json:"welcome_message,omitempty"`
}

type sessionResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ExperienceLevel string    `json:"experience_level"`
	MaxQuestions    int       `json:"max_questions"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	AudioFile string    `json:"audio_file,omitempty"`
}

type questionResponse struct {
	Text             string `json:"text"`
	FollowUpPossible bool   `json:"follow_up_possible"`
}

type feedbackResponse struct {
	Content    string   `json:"content"`
	Tone       string   `json:"tone"`
	Clarity    string   `json:"clarity"`
	Sentiment  string   `json:"sentiment"`
	Engagement int      `json:"engagement"`
	Confidence int      `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

type getSessionResponse struct {
	Session        sessionResponse    `json:"session"`
	State          string             `json:"state"`
	Question       *questionResponse  `json:"current_question,omitempty"`
	Messages       []messageResponse  `json:"messages"`
	Feedback       []feedbackResponse `json:"feedback"`
	ElapsedSeconds int                `json:"elapsed_seconds"`
	MicStatus      string             `json:"mic_status"`
	CameraStatus   string             `json:"camera_status"`
	QuestionsDone  int                `json:"questions_done"`
}

type beginResponse struct {
	State    string           `json:"state"`
	Question questionResponse `json:"question"`
	Message  messageResponse  `json:"message"`
}

type answerResponse struct {
	State       string           `json:"state"`
	UserMessage messageResponse  `json:"user_message"`
	Feedback    feedbackResponse `json:"feedback"`
}

type continueResponse struct {
	State    string            `json:"state"`
	Done     bool              `json:"done"`
	Question *questionResponse `json:"question,omitempty"`
	Message  *messageResponse  `json:"message,omitempty"`
}

type cameraRequest struct {
	Enabled bool `json:"enabled"`
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type adminSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSession(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id} or /sessions/{id}/<action>
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetSession(w, r, id)
		case http.MethodDelete:
			s.handleTeardown(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}

	action := parts[1]

	if action == "report" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleReport(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	switch action {
	case "begin":
		s.handleBegin(w, r, id)
	case "listen":
		s.handleListen(w, r, id)
	case "answer":
		s.handleAnswer(w, r, id)
	case "continue":
		s.handleContinue(w, r, id)
	case "camera":
		s.handleCamera(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "user_id is required")
		return
	}

	out, err := s.svc.CreateSession(r.Context(), interview.CreateSessionInput{
		UserID:          domain.UserID(req.UserID),
		ResumeText:      req.ResumeText,
		ExperienceLevel: parseExperienceLevel(req.ExperienceLevel),
	})
	if err != nil {
		internalError(w, err)
		return
	}

	resp := createSessionResponse{
		Session: toSessionResponse(out.Session),
	}
	if out.Welcome != nil {
		m := toMessageResponse(*out.Welcome)
		resp.Welcome = &m
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	view, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := getSessionResponse{
		Session:        toSessionResponse(view.Session),
		State:          string(view.State),
		Messages:       toMessagesResponse(view.Messages),
		Feedback:       toFeedbackResponses(view.Feedback),
		ElapsedSeconds: view.ElapsedSec,
		MicStatus:      string(view.MicStatus),
		CameraStatus:   string(view.CameraStatus),
		QuestionsDone:  view.QuestionsDone,
	}
	if view.Question != nil {
		resp.Question = &questionResponse{
			Text:             view.Question.Text,
			FollowUpPossible: view.Question.FollowUpPossible,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	out, err := s.svc.Begin(r.Context(), interview.BeginInput{SessionID: id})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, beginResponse{
		State: string(domain.StateQuestion),
		Question: questionResponse{
			Text:             out.Question.Text,
			FollowUpPossible: out.Question.FollowUpPossible,
		},
		Message: toMessageResponse(*out.Message),
	})
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	if err := s.svc.StartListening(r.Context(), interview.ListenInput{SessionID: id}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StateListening)})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	out, err := s.svc.Answer(r.Context(), interview.AnswerInput{SessionID: id})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answerResponse{
		State:       string(domain.StateFeedback),
		UserMessage: toMessageResponse(*out.UserMessage),
		Feedback:    toFeedbackResponse(*out.Feedback),
	})
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	out, err := s.svc.Continue(r.Context(), interview.ContinueInput{SessionID: id})
	if err != nil {
		writeError(w, err)
		return
	}

	if out.Done {
		writeJSON(w, http.StatusOK, continueResponse{
			State: string(domain.StateComplete),
			Done:  true,
		})
		return
	}

	m := toMessageResponse(*out.Message)
	writeJSON(w, http.StatusOK, continueResponse{
		State: string(domain.StateQuestion),
		Question: &questionResponse{
			Text:             out.Question.Text,
			FollowUpPossible: out.Question.FollowUpPossible,
		},
		Message: &m,
	})
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if err := s.svc.SetCamera(r.Context(), interview.CameraInput{SessionID: id, Enabled: req.Enabled}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"camera_enabled": req.Enabled})
}

func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	s.svc.Teardown(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.StateComplete)})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	snap, err := s.svc.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "interview_"+string(id)+".zip"))
	if err := report.WriteArchive(w, snap); err != nil {
		// Headers are already out; nothing sensible left to send.
		return
	}
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	cookie, ok := s.admin.login(req.Username, req.Password)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	sessions, err := s.svc.ListSessions(r.Context(), 50)
	if err != nil {
		internalError(w, err)
		return
	}

	resp := adminSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// Interview Helpers
// ─────────────────────────────────────────────

func toSessionResponse(s *domain.Session) sessionResponse {
	return sessionResponse{
		ID:              string(s.ID),
		UserID:          string(s.UserID),
		ExperienceLevel: string(s.ExperienceLevel),
		MaxQuestions:    s.MaxQuestions,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:        string(m.ID),
		SessionID: string(m.SessionID),
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		AudioFile: m.AudioRef,
	}
}

func toMessagesResponse(msgs []domain.Message) []messageResponse {
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return out
}

func toFeedbackResponse(fb domain.Feedback) feedbackResponse {
	keywords := fb.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return feedbackResponse{
		Content:    fb.ContentNote,
		Tone:       fb.ToneNote,
		Clarity:    fb.ClarityNote,
		Sentiment:  string(fb.Sentiment),
		Engagement: fb.Engagement,
		Confidence: fb.Confidence,
		Keywords:   keywords,
	}
}

func toFeedbackResponses(fbs []domain.Feedback) []feedbackResponse {
	out := make([]feedbackResponse, 0, len(fbs))
	for _, fb := range fbs {
		out = append(out, toFeedbackResponse(fb))
	}
	return out
}

func parseExperienceLevel(s string) domain.ExperienceLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "junior", "entry":
		return domain.LevelJunior
	case "senior":
		return domain.LevelSenior
	case "mid", "mid-level", "intermediate":
		return domain.LevelMid
	default:
		return domain.LevelMid
	}
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto status codes. Permission problems come
// back as 403 with the user-facing prompt; state conflicts as 409.
func writeError(w http.ResponseWriter, err error) {
	var perr *interview.PermissionError
	switch {
	case errors.As(err, &perr):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error":  perr.Error(),
			"device": string(perr.Device),
			"reason": string(perr.Reason),
		})
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, interview.ErrSessionClosed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already complete"})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, interview.ErrCaptureStillClosing):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		internalError(w, err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
