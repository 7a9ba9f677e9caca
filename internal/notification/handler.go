// Package notification runs the asynchronous signup notifications: the
// welcome email and the sales channel alert.
package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/voundbrand/gatehouse/internal/notification/email"
	"github.com/voundbrand/gatehouse/internal/notification/slack"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

// WelcomeEmailHandler sends the welcome email for a freshly provisioned
// account. Sending twice for the same task is harmless, so duplicate
// delivery needs no dedupe here.
type WelcomeEmailHandler struct {
	provider email.Provider
	log      *zap.Logger
}

func NewWelcomeEmailHandler(provider email.Provider, log *zap.Logger) *WelcomeEmailHandler {
	return &WelcomeEmailHandler{
		provider: provider,
		log:      log.Named("notification.welcome"),
	}
}

func (h *WelcomeEmailHandler) Kind() string { return taskdomain.KindWelcomeEmail }

func (h *WelcomeEmailHandler) Handle(ctx context.Context, task *taskdomain.Task) error {
	to, _ := task.Payload["email"].(string)
	if to == "" {
		return fmt.Errorf("welcome email task %s has no recipient", task.ID)
	}
	displayName, _ := task.Payload["display_name"].(string)
	if displayName == "" {
		displayName = "there"
	}

	subject := "Welcome aboard"
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your workspace is ready. Sign in to get started.</p>", displayName)

	if err := h.provider.Send(ctx, []string{to}, subject, body); err != nil {
		return err
	}
	h.log.Info("welcome email sent", zap.String("to", to))
	return nil
}

// SalesAlertHandler posts a new-signup notice to the sales channel.
type SalesAlertHandler struct {
	provider slack.Provider
	channel  string
	log      *zap.Logger
}

func NewSalesAlertHandler(provider slack.Provider, channel string, log *zap.Logger) *SalesAlertHandler {
	return &SalesAlertHandler{
		provider: provider,
		channel:  channel,
		log:      log.Named("notification.sales_alert"),
	}
}

func (h *SalesAlertHandler) Kind() string { return taskdomain.KindSalesAlert }

func (h *SalesAlertHandler) Handle(ctx context.Context, task *taskdomain.Task) error {
	emailAddr, _ := task.Payload["email"].(string)
	orgName, _ := task.Payload["org_name"].(string)
	tier, _ := task.Payload["tier"].(string)
	if tier == "" {
		tier = "free"
	}

	message := fmt.Sprintf("New signup: %s (%s, %s tier)", emailAddr, orgName, tier)
	if err := h.provider.PostMessage(ctx, h.channel, message); err != nil {
		return err
	}
	h.log.Info("sales alert posted", zap.String("org_name", orgName))
	return nil
}
