package notification

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/voundbrand/gatehouse/internal/config"
	"github.com/voundbrand/gatehouse/internal/notification/email"
	"github.com/voundbrand/gatehouse/internal/notification/slack"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
)

var Module = fx.Module("notification",
	fx.Provide(newEmailProvider),
	fx.Provide(newSlackProvider),
	fx.Provide(
		fx.Annotate(newWelcomeEmailHandler,
			fx.As(new(taskdomain.Handler)),
			fx.ResultTags(`group:"task_handlers"`)),
		fx.Annotate(newSalesAlertHandler,
			fx.As(new(taskdomain.Handler)),
			fx.ResultTags(`group:"task_handlers"`)),
	),
)

func newEmailProvider(cfg config.Config) email.Provider {
	if cfg.SMTPHost == "" {
		return &email.NoOpProvider{}
	}
	return email.NewSMTP(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

func newSlackProvider(cfg config.Config) slack.Provider {
	if cfg.SlackWebhookURL == "" {
		return &slack.NoOpProvider{}
	}
	return slack.NewWebhook(cfg.SlackWebhookURL)
}

func newWelcomeEmailHandler(provider email.Provider, log *zap.Logger) *WelcomeEmailHandler {
	return NewWelcomeEmailHandler(provider, log)
}

func newSalesAlertHandler(provider slack.Provider, cfg config.Config, log *zap.Logger) *SalesAlertHandler {
	return NewSalesAlertHandler(provider, cfg.SalesAlertChannel, log)
}
