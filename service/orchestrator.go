package service

import (
	"context"
	"finchat/model"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TurnState labels the stages of one chat turn. A turn moves
// Idle → Retrieving → Grading (→ CorrectionRetrieving → Grading) →
// ContextAssembly → Generating → Persisting → Idle, or into Errored from any
// stage.
type TurnState string

const (
	StateIdle                 TurnState = "idle"
	StateRetrieving           TurnState = "retrieving"
	StateGrading              TurnState = "grading"
	StateCorrectionRetrieving TurnState = "correction_retrieving"
	StateContextAssembly      TurnState = "context_assembly"
	StateGenerating           TurnState = "generating"
	StatePersisting           TurnState = "persisting"
	StateErrored              TurnState = "errored"
)

const systemPrompt = "You are a personal finance assistant. Answer using only " +
	"the financial records provided in the context. Be concrete with amounts " +
	"and dates, and say plainly when the records cannot answer the question."

const historyWindow = 10

// TurnRequest is one user message aimed at a conversation. An empty
// ConversationID asks for lazy creation on first message.
type TurnRequest struct {
	UserID         uint
	ConversationID string
	Message        string
}

// TurnEvents receives streaming callbacks. All fields are optional; a nil
// OnChunk selects the non-streaming invoker.
type TurnEvents struct {
	OnStart    func(conversationID string)
	OnChunk    func(content string)
	OnMetadata func(dataSources []string, confidence float64)
}

// TurnResult is a successfully completed turn.
type TurnResult struct {
	ConversationID string
	Assistant      *model.Message
	Corrected      bool
}

// ChatService drives the corrective-RAG turn pipeline.
//
// Partial-turn policy: an aborted or failed turn persists nothing. Chunks the
// client already received are its UI's problem to roll back; the transcript
// only ever contains completed turns.
type ChatService struct {
	Retriever   *RetrieverService
	Grader      *GraderService
	Assembler   *AssemblerService
	Settings    *SettingsService
	WebSearch   *WebSearchService
	NewProvider ProviderFactory
	TurnTimeout time.Duration

	locks turnLocks
}

func NewChatService(settings *SettingsService) *ChatService {
	return &ChatService{
		Retriever:   NewRetrieverService(),
		Grader:      &GraderService{},
		Assembler:   &AssemblerService{},
		Settings:    settings,
		WebSearch:   NewWebSearchService(),
		NewProvider: NewProvider,
		TurnTimeout: 2 * time.Minute,
	}
}

// turnLocks serializes turns per conversation within this process. A second
// turn arriving while one is in flight is rejected, which keeps the counter
// updates and transcript ordering safe.
type turnLocks struct {
	mu     sync.Mutex
	active map[string]bool
}

func (l *turnLocks) acquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == nil {
		l.active = make(map[string]bool)
	}
	if l.active[id] {
		return false
	}
	l.active[id] = true
	return true
}

func (l *turnLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, id)
}

// RunTurn executes one turn end to end. Validation and configuration guards
// run before any conversation row is created, so a refused turn leaves no
// trace.
func (s *ChatService) RunTurn(ctx context.Context, req *TurnRequest, events *TurnEvents) (*TurnResult, error) {
	started := time.Now()
	state := StateIdle

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	settings, err := model.GetAISettings(req.UserID)
	if err != nil {
		return nil, err
	}
	if !settings.AIEnabled {
		return nil, ErrAIDisabled
	}
	cfg, err := s.Settings.ProviderConfig(settings)
	if err != nil {
		return nil, err
	}
	provider, err := s.NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	createNew := req.ConversationID == ""
	conversationID := req.ConversationID
	var history []ChatMessage
	if createNew {
		conversationID = uuid.New().String()
	} else {
		if _, err := model.GetConversation(conversationID, req.UserID); err != nil {
			return nil, err
		}
		history, err = s.loadHistory(conversationID)
		if err != nil {
			return nil, err
		}
	}

	if !s.locks.acquire(conversationID) {
		return nil, ErrTurnInFlight
	}
	defer s.locks.release(conversationID)

	ctx, cancel := context.WithTimeout(ctx, s.TurnTimeout)
	defer cancel()

	if events != nil && events.OnStart != nil {
		events.OnStart(conversationID)
	}

	state = StateRetrieving
	retrieval := s.Retriever.Retrieve(req.UserID, message, settings)

	state = StateGrading
	grade := s.Grader.Grade(message, retrieval.Documents)

	// Corrective cycle: at most once per turn.
	corrected := false
	if grade.Confidence < settings.RelevanceThreshold && settings.EnableCrag {
		corrected = true
		rewritten := s.Grader.RewriteQuery(message)
		logger.Infof("[turn %s] %s: confidence %.2f below %.2f, corrected query %q",
			conversationID, StateCorrectionRetrieving, grade.Confidence, settings.RelevanceThreshold, rewritten)

		state = StateCorrectionRetrieving
		reRetrieval := s.Retriever.Retrieve(req.UserID, rewritten, settings)

		state = StateGrading
		reGrade := s.Grader.Grade(rewritten, reRetrieval.Documents)
		if reGrade.Confidence > grade.Confidence {
			grade = reGrade
		}
	}

	needsFallback := grade.Confidence < settings.RelevanceThreshold && settings.EnableWebSearchFallback
	if needsFallback {
		if doc, err := s.WebSearch.Lookup(ctx, message); err != nil {
			logger.Warnf("[turn %s] web fallback skipped: %s", conversationID, err)
		} else if doc != nil {
			grade.Documents = append(grade.Documents, *doc)
		}
	}

	state = StateContextAssembly
	assembled := s.Assembler.Assemble(grade.Documents, settings.MaxTokens, needsFallback)
	if events != nil && events.OnMetadata != nil {
		events.OnMetadata(assembled.DataSources, grade.Confidence)
	}

	prompt := []ChatMessage{
		{Role: model.RoleSystemMsg, Content: systemPrompt},
		{Role: model.RoleSystemMsg, Content: assembled.Prompt},
	}
	prompt = append(prompt, history...)
	prompt = append(prompt, ChatMessage{Role: model.RoleUserMsg, Content: message})

	state = StateGenerating
	var invocation *Invocation
	if events != nil && events.OnChunk != nil {
		invocation, err = provider.Stream(ctx, prompt, events.OnChunk)
	} else {
		invocation, err = provider.Invoke(ctx, prompt)
	}
	if err != nil {
		state = StateErrored
		logger.Warnf("[turn %s] %s at %s: %s", conversationID, StateErrored, StateGenerating, err)
		return nil, err
	}

	state = StatePersisting
	elapsed := time.Since(started).Milliseconds()
	sources := strings.Join(assembled.DataSources, ",")
	confidence := grade.Confidence
	tokens := invocation.TokensUsed

	userMsg := &model.Message{Role: model.RoleUserMsg, Content: message}
	assistantMsg := &model.Message{
		Role:         model.RoleAssistantMsg,
		Content:      invocation.Content,
		DataSources:  &sources,
		Confidence:   &confidence,
		TokensUsed:   &tokens,
		ProcessingMs: &elapsed,
	}

	title := ""
	if createNew {
		title = deriveTitle(message)
	}
	if err := model.AppendTurn(conversationID, req.UserID, title, createNew, userMsg, assistantMsg); err != nil {
		logger.Warnf("[turn %s] %s at %s: %s", conversationID, StateErrored, StatePersisting, err)
		return nil, ErrPersistence
	}

	state = StateIdle
	logger.Infof("[turn %s] %s: %d tokens, %d ms, sources=%s confidence=%.2f corrected=%v",
		conversationID, state, tokens, elapsed, sources, confidence, corrected)

	return &TurnResult{
		ConversationID: conversationID,
		Assistant:      assistantMsg,
		Corrected:      corrected,
	}, nil
}

func (s *ChatService) loadHistory(conversationID string) ([]ChatMessage, error) {
	messages, err := model.ListMessages(conversationID)
	if err != nil {
		return nil, err
	}
	if len(messages) > historyWindow {
		messages = messages[len(messages)-historyWindow:]
	}
	history := make([]ChatMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return history, nil
}

func deriveTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) > 48 {
		return string(runes[:48]) + "…"
	}
	return string(runes)
}
