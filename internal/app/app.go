package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"athena/internal/store"
	"athena/pkg/ai"
	"athena/pkg/auth"
	"athena/pkg/domain"
)

// defaultSystemPrompt is the persona prefixed to every generation request.
const defaultSystemPrompt = `You are 'Athena', a cybersecurity expert and AI assistant. ` +
	`Provide clear, accurate, and helpful information on cybersecurity topics, ` +
	`help users understand digital security, privacy, and online safety, ` +
	`and explain complex concepts in an accessible way. ` +
	`Always be helpful, professional, and educational in your responses.`

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	SessionTTL      time.Duration
	GeminiAPIKey    string
	GenerationModel string
	SystemPrompt    string
	HistoryLimit    int

	// Injection points for tests; defaults are built from the fields above.
	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.TextGenerator
}

// App is the core application service wiring together storage, sessions,
// and the generation client.
type App struct {
	store        store.Store
	sessions     store.SessionStore
	generator    ai.TextGenerator
	systemPrompt string
	historyLimit int
}

// New constructs the application with database-backed storage, stateless
// JWT sessions, and a Gemini generation client.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var err error
		sessions, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
	}

	generator := cfg.Generator
	if generator == nil {
		if cfg.GenerationModel == "" {
			return nil, fmt.Errorf("generation model required")
		}
		gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		generator = ai.NewGeminiGenerator(gemini, cfg.GenerationModel)
	}

	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit < 0 {
		historyLimit = 0
	}

	return &App{
		store:        dataStore,
		sessions:     sessions,
		generator:    generator,
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
	}, nil
}

// Register creates a new user. Registration is check-then-insert; the unique
// index on email backstops concurrent duplicates.
func (a *App) Register(email, password string) (domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           store.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login validates credentials and issues a bearer token bound to the email.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a bearer token to its user.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	email, ok, err := a.sessions.GetSubjectByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByEmail(email)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// ChangePassword updates the user's password after re-verifying the current
// one.
func (a *App) ChangePassword(userID, currentPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("new password required")
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return fmt.Errorf("user not found")
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCurrentPassword
	}
	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SendMessage runs one chat turn: persist the inbound message, generate the
// assistant reply, persist and return it. A generation failure leaves the
// inbound message in place; the partial turn is documented behavior, not
// rolled back.
func (a *App) SendMessage(ctx context.Context, user domain.User, role, content string) (domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, ErrContentRequired
	}
	role = strings.TrimSpace(strings.ToLower(role))
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return domain.ChatMessage{}, ErrInvalidRole
	}

	var history []domain.ChatMessage
	if a.historyLimit > 0 {
		var err error
		history, err = a.store.ListMessages(user.ID, a.historyLimit)
		if err != nil {
			return domain.ChatMessage{}, fmt.Errorf("load history: %w", err)
		}
	}

	inbound := domain.ChatMessage{
		ID:        store.NewID(),
		UserID:    user.ID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendMessage(user.ID, inbound); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save user message: %w", err)
	}

	reply, err := a.generator.GenerateText(ctx, a.systemPrompt, buildPrompt(history, content))
	if err != nil {
		slog.Error("generation failed", "user_id", user.ID, "err", err)
		return domain.ChatMessage{}, ErrGenerationFailed
	}

	outbound := domain.ChatMessage{
		ID:        store.NewID(),
		UserID:    user.ID,
		Role:      domain.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.AppendMessage(user.ID, outbound); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("save assistant message: %w", err)
	}
	return outbound, nil
}

// History returns the user's full chat history in creation order.
func (a *App) History(user domain.User) ([]domain.ChatMessage, error) {
	msgs, err := a.store.ListMessages(user.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Ping probes the storage connection for health checks.
func (a *App) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}

// buildPrompt restates recent history (when enabled) ahead of the current
// message.
func buildPrompt(history []domain.ChatMessage, content string) string {
	if len(history) == 0 {
		return "User's message: " + content
	}
	var sb strings.Builder
	sb.WriteString("Conversation so far:\n")
	for _, msg := range history {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("\nUser's message: ")
	sb.WriteString(content)
	return sb.String()
}
