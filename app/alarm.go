package app

import (
	"errors"
	"fmt"

	"github.com/yeti47/securitycam/ccc/logging"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/encryption"
	"github.com/yeti47/securitycam/notifications"
)

// NewSealer returns the sealer protecting the SMTP password in the account file.
func NewSealer(cfg config.AlarmConfig) (*encryption.Sealer, error) {
	if cfg.Secret == "" {
		return nil, config.NewConfigurationError("alarm.secret", "must be set to seal or open the SMTP password")
	}
	return encryption.NewSealer(encryption.NewAESEncryptor(), cfg.Secret), nil
}

// BuildAlarmSender combines the SMTP account from the account file with the configured
// shoutrrr services. Without either the alarms are only logged.
func BuildAlarmSender(cfg config.AlarmConfig, logger logging.Logger) (notifications.AlarmSender, error) {
	if logger == nil {
		logger = logging.NopLogger
	}

	var senders notifications.MultiSender

	account, err := notifications.LoadAlarmAccount(cfg.AccountFile)
	switch {
	case errors.Is(err, notifications.ErrAccountNotFound):
		logger.Warn("No alarm account configured, mail alarms are disabled", "path", cfg.AccountFile)
	case err != nil:
		return nil, err
	case len(account.Recipients) == 0:
		logger.Warn("Alarm account has no recipients, mail alarms are disabled", "path", cfg.AccountFile)
	default:
		sealer, err := NewSealer(cfg)
		if err != nil {
			return nil, err
		}
		smtpSender, err := account.Sender(sealer)
		if err != nil {
			return nil, err
		}
		senders = append(senders, smtpSender)
		logger.Info("Mail alarms enabled", "server", account.Server, "recipients", len(account.Recipients))
	}

	if len(cfg.NotifyURLs) > 0 {
		pushSender, err := notifications.NewShoutrrrAlarmSender(cfg.NotifyURLs, cfg.SendTimeout())
		if err != nil {
			return nil, fmt.Errorf("failed to set up push notifications: %w", err)
		}
		senders = append(senders, pushSender)
		logger.Info("Push alarms enabled", "services", len(cfg.NotifyURLs))
	}

	switch len(senders) {
	case 0:
		return notifications.NopAlarmSender, nil
	case 1:
		return senders[0], nil
	default:
		return senders, nil
	}
}
