package notification

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

type recordingEmail struct {
	to      []string
	subject string
	body    string
}

func (r *recordingEmail) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	r.to = to
	r.subject = subject
	r.body = htmlBody
	return nil
}

type recordingSlack struct {
	channel string
	message string
}

func (r *recordingSlack) PostMessage(ctx context.Context, channel, message string) error {
	r.channel = channel
	r.message = message
	return nil
}

func newTask(t *testing.T, kind string, payload map[string]any) *taskdomain.Task {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return &taskdomain.Task{ID: node.Generate(), Kind: kind, Payload: payload}
}

func TestWelcomeEmailHandler(t *testing.T) {
	provider := &recordingEmail{}
	handler := NewWelcomeEmailHandler(provider, zap.NewNop())
	require.Equal(t, taskdomain.KindWelcomeEmail, handler.Kind())

	task := newTask(t, taskdomain.KindWelcomeEmail, map[string]any{
		"email":        "john@example.com",
		"display_name": "John",
	})
	require.NoError(t, handler.Handle(context.Background(), task))
	require.Equal(t, []string{"john@example.com"}, provider.to)
	require.Contains(t, provider.body, "John")
}

func TestWelcomeEmailHandlerRequiresRecipient(t *testing.T) {
	handler := NewWelcomeEmailHandler(&recordingEmail{}, zap.NewNop())

	task := newTask(t, taskdomain.KindWelcomeEmail, map[string]any{})
	require.Error(t, handler.Handle(context.Background(), task))
}

func TestSalesAlertHandler(t *testing.T) {
	provider := &recordingSlack{}
	handler := NewSalesAlertHandler(provider, "#signups", zap.NewNop())
	require.Equal(t, taskdomain.KindSalesAlert, handler.Kind())

	task := newTask(t, taskdomain.KindSalesAlert, map[string]any{
		"email":    "john@example.com",
		"org_name": "Acme",
		"tier":     "pro",
	})
	require.NoError(t, handler.Handle(context.Background(), task))
	require.Equal(t, "#signups", provider.channel)
	require.Contains(t, provider.message, "john@example.com")
	require.Contains(t, provider.message, "Acme")
	require.Contains(t, provider.message, "pro")
}
