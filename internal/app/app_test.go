package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"athena/internal/store"
	"athena/pkg/domain"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
	last  struct {
		system string
		user   string
	}
}

func (g *stubGenerator) GenerateText(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	g.last.system = systemPrompt
	g.last.user = userPrompt
	return g.reply, g.err
}

func newTestApp(t *testing.T, gen *stubGenerator) *App {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("test-secret", 30*time.Minute)
	require.NoError(t, err)
	a, err := New(Config{
		Store:     store.NewMemoryStore(),
		Sessions:  sessions,
		Generator: gen,
	})
	require.NoError(t, err)
	return a
}

func TestRegisterThenLoginIssuesResolvableToken(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "ok"})

	user, err := a.Register("A@X.com", "pw1")
	require.NoError(t, err)
	require.Equal(t, "a@x.com", user.Email)
	require.NotEmpty(t, user.ID)
	require.NotEqual(t, "pw1", user.PasswordHash)

	loggedIn, token, err := a.Login("a@x.com", "pw1")
	require.NoError(t, err)
	require.Equal(t, user.ID, loggedIn.ID)
	require.NotEmpty(t, token)

	resolved, ok := a.UserFromToken(token)
	require.True(t, ok)
	require.Equal(t, "a@x.com", resolved.Email)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "ok"})

	_, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	_, err = a.Register("a@x.com", "other")
	require.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "ok"})
	_, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	_, _, err = a.Login("a@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Login("nobody@x.com", "pw1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePasswordRequiresCurrentPassword(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "ok"})
	user, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	err = a.ChangePassword(user.ID, "wrong", "pw2")
	require.ErrorIs(t, err, ErrInvalidCurrentPassword)

	require.NoError(t, a.ChangePassword(user.ID, "pw1", "pw2"))

	_, _, err = a.Login("a@x.com", "pw1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = a.Login("a@x.com", "pw2")
	require.NoError(t, err)
}

func TestSendMessagePersistsBothTurns(t *testing.T) {
	gen := &stubGenerator{reply: "Phishing is a social engineering attack."}
	a := newTestApp(t, gen)
	user, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	reply, err := a.SendMessage(context.Background(), user, "user", "What is phishing?")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAssistant, reply.Role)
	require.Equal(t, gen.reply, reply.Content)
	require.Equal(t, 1, gen.calls)
	require.Contains(t, gen.last.user, "What is phishing?")
	require.NotEmpty(t, gen.last.system)

	history, err := a.History(user)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.RoleUser, history[0].Role)
	require.Equal(t, "What is phishing?", history[0].Content)
	require.Equal(t, domain.RoleAssistant, history[1].Role)
	require.Equal(t, gen.reply, history[1].Content)
	require.False(t, history[1].CreatedAt.Before(history[0].CreatedAt))
}

func TestSendMessageGenerationFailureKeepsInboundOnly(t *testing.T) {
	gen := &stubGenerator{err: errors.New("remote blew up")}
	a := newTestApp(t, gen)
	user, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	_, err = a.SendMessage(context.Background(), user, "user", "hello?")
	require.ErrorIs(t, err, ErrGenerationFailed)
	// Remote detail must not leak into the user-facing error.
	require.NotContains(t, err.Error(), "remote blew up")

	history, err := a.History(user)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.RoleUser, history[0].Role)
}

func TestSendMessageValidatesInput(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "ok"})
	user, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	_, err = a.SendMessage(context.Background(), user, "user", "   ")
	require.ErrorIs(t, err, ErrContentRequired)

	_, err = a.SendMessage(context.Background(), user, "system", "hi")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestHistoryIsPerUser(t *testing.T) {
	a := newTestApp(t, &stubGenerator{reply: "answer"})
	alice, err := a.Register("alice@x.com", "pw1")
	require.NoError(t, err)
	bob, err := a.Register("bob@x.com", "pw2")
	require.NoError(t, err)

	_, err = a.SendMessage(context.Background(), alice, "user", "alice asks")
	require.NoError(t, err)
	_, err = a.SendMessage(context.Background(), bob, "user", "bob asks")
	require.NoError(t, err)

	aliceHistory, err := a.History(alice)
	require.NoError(t, err)
	require.Len(t, aliceHistory, 2)
	for _, msg := range aliceHistory {
		require.Equal(t, alice.ID, msg.UserID)
	}
}

func TestSendMessageRestatesHistoryWhenEnabled(t *testing.T) {
	gen := &stubGenerator{reply: "answer"}
	sessions, err := store.NewJWTSessionStore("test-secret", time.Minute)
	require.NoError(t, err)
	a, err := New(Config{
		Store:        store.NewMemoryStore(),
		Sessions:     sessions,
		Generator:    gen,
		HistoryLimit: 10,
	})
	require.NoError(t, err)

	user, err := a.Register("a@x.com", "pw1")
	require.NoError(t, err)

	_, err = a.SendMessage(context.Background(), user, "user", "first question")
	require.NoError(t, err)
	_, err = a.SendMessage(context.Background(), user, "user", "second question")
	require.NoError(t, err)

	require.Contains(t, gen.last.user, "first question")
	require.Contains(t, gen.last.user, "second question")
}
