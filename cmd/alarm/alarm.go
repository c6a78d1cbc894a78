package alarm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yeti47/securitycam/app"
	"github.com/yeti47/securitycam/config"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/notifications"
)

// PasswordEnv can carry the SMTP password so that it stays out of the shell history.
const PasswordEnv = "SECURITYCAM_SMTP_PASSWORD"

// Command returns the command group managing the alarm mail account
func Command(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alarm",
		Short: "Manage the account alarms are sent from",
	}

	cmd.AddCommand(
		initCommand(configPath),
		addRecipientCommand(configPath),
		testCommand(configPath),
	)

	return cmd
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func initCommand(configPath *string) *cobra.Command {
	var (
		server     string
		port       int
		username   string
		password   string
		skipVerify bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store the SMTP account alarms are sent from",
		Long: `Store the SMTP account alarms are sent from.

The password is sealed with alarm.secret (SECURITYCAM_ALARM_SECRET) before it is
written to the account file. The login is verified against the server first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			if password == "" {
				password = os.Getenv(PasswordEnv)
			}
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password (or %s) are required", PasswordEnv)
			}

			sealer, err := app.NewSealer(cfg.Alarm)
			if err != nil {
				return err
			}

			account, err := notifications.NewAlarmAccount(server, port, username, password, sealer)
			if err != nil {
				return err
			}

			if existing, err := notifications.LoadAlarmAccount(cfg.Alarm.AccountFile); err == nil {
				account.Recipients = existing.Recipients
			} else if !errors.Is(err, notifications.ErrAccountNotFound) {
				return err
			}

			if !skipVerify {
				if err := notifications.VerifyAccount(account.Server, account.Port, username, password); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Login verified")
			}

			if err := notifications.SaveAlarmAccount(cfg.Alarm.AccountFile, account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Alarm account saved to %s\n", cfg.Alarm.AccountFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", notifications.DefaultSmtpServer, "SMTP server")
	cmd.Flags().IntVar(&port, "port", notifications.DefaultSmtpPort, "SMTP port (STARTTLS)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Account user name, also used as sender address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password, see also "+PasswordEnv)
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Store the account without logging in first")

	return cmd
}

func addRecipientCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "add-recipient <address>...",
		Short: "Add addresses that receive alarms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			account, err := notifications.LoadAlarmAccount(cfg.Alarm.AccountFile)
			if err != nil {
				if errors.Is(err, notifications.ErrAccountNotFound) {
					return errors.New("no alarm account yet, run 'securitycam alarm init' first")
				}
				return err
			}

			for _, address := range args {
				if err := account.AddRecipient(address); err != nil {
					return err
				}
			}

			if err := notifications.SaveAlarmAccount(cfg.Alarm.AccountFile, account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d recipient(s) configured\n", len(account.Recipients))
			return nil
		},
	}
}

func testCommand(configPath *string) *cobra.Command {
	var cameraID string

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test alarm through every configured transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			sender, err := app.BuildAlarmSender(cfg.Alarm, nil)
			if err != nil {
				return err
			}
			if sender == notifications.NopAlarmSender {
				return errors.New("no alarm transport configured")
			}

			ctx := cmd.Context()
			if timeout := cfg.Alarm.SendTimeout(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			err = sender.SendAlarm(ctx, notifications.Alarm{
				CameraID:  cameraID,
				SessionID: "test",
				Level:     eventlevel.LevelConcerning,
				At:        time.Now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test alarm sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&cameraID, "camera", "test", "Camera id shown in the alarm")
	return cmd
}
