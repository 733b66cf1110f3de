package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	httpadapter "github.com/PabloGalante/intervu-api/internal/adapters/http"
	"github.com/PabloGalante/intervu-api/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/intervu-api/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/intervu-api/internal/adapters/storage/memory"
	"github.com/PabloGalante/intervu-api/internal/app/interview"
	"github.com/PabloGalante/intervu-api/internal/config"
	"github.com/PabloGalante/intervu-api/internal/domain"
	"github.com/PabloGalante/intervu-api/internal/media"
	pulsecapture "github.com/PabloGalante/intervu-api/internal/media/pulse"
)

func main() {
	ctx := context.Background()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()

	clientCfg := llm.ClientConfig{
		ProjectID: cfg.GCPProjectID,
		Location:  cfg.GCPLocation,
		ModelName: cfg.ModelName,
		Timeout:   cfg.RemoteTimeout,
	}

	// Interviewer: mock or Gemini
	var (
		questions domain.QuestionSource
		scorer    domain.ResponseScorer
	)
	if cfg.UseMockLLM {
		log.Println("[LLM] Using mock interviewer")
		mock := llm.NewMockInterviewer()
		questions = mock
		scorer = mock
	} else {
		log.Printf("[LLM] Using Gemini interviewer (model=%s)", cfg.ModelName)
		client, err := llm.NewGeminiClient(ctx, clientCfg)
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
		questions = client
		scorer = client
	}

	// Capture: real microphone or scripted fakes
	var (
		devices       domain.DeviceProvider
		newRecognizer func() domain.Recognizer
	)
	switch cfg.CaptureProvider {
	case "pulse":
		log.Println("[CAPTURE] Using PulseAudio microphone")
		devices = pulsecapture.NewProvider()
		factory, err := llm.NewTranscriberFactory(ctx, clientCfg, media.AudioMIMEType)
		if err != nil {
			log.Fatalf("error initializing transcriber: %v", err)
		}
		newRecognizer = factory.New
	default:
		log.Println("[CAPTURE] Using fake devices")
		devices = media.NewFakeProvider()
		newRecognizer = func() domain.Recognizer {
			return media.NewStaticRecognizer("This is a simulated interview answer.")
		}
	}

	// Storage: Firestore or Memory
	var (
		sessionStore  domain.SessionStore
		messageStore  domain.MessageStore
		feedbackStore domain.FeedbackStore
	)
	switch cfg.StorageBackend {
	case "firestore":
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		store, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

		// 1 store, implements 3 interfaces
		sessionStore = store
		messageStore = store
		feedbackStore = store
	default:
		log.Println("[STORE] Using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		messageStore = memstore.NewMessageStore()
		feedbackStore = memstore.NewFeedbackStore()
	}

	svc := interview.NewService(interview.ServiceConfig{
		Questions:     questions,
		Scorer:        scorer,
		Devices:       devices,
		NewRecognizer: newRecognizer,
		SessionStore:  sessionStore,
		MessageStore:  messageStore,
		FeedbackStore: feedbackStore,
		MaxQuestions:  cfg.MaxQuestions,
	})

	handler := httpadapter.NewServer(svc, cfg.AdminUsername, cfg.AdminPassword)

	addr := ":" + cfg.Port
	log.Println("Intervu API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
