package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/barberia-elite/internal/config"
	"github.com/wolfman30/barberia-elite/internal/notify"
	"github.com/wolfman30/barberia-elite/pkg/logging"
)

// BuildEmailSender selects the provider named by EMAIL_PROVIDER. A provider
// that cannot be built falls back to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) (notify.EmailSender, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), appconfig.EmailStub
	}
	switch cfg.EmailProvider {
	case appconfig.EmailSendGrid:
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender, appconfig.EmailSendGrid
		}
		logger.Warn("sendgrid selected without SENDGRID_API_KEY, using stub email sender")
	case appconfig.EmailSES:
		if sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender, appconfig.EmailSES
		}
		logger.Warn("ses selected without an SES client, using stub email sender")
	}
	return notify.NewStubEmailSender(logger), appconfig.EmailStub
}
