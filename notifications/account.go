package notifications

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"slices"

	"github.com/yeti47/securitycam/encryption"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSmtpServer = "smtp.gmail.com"
	DefaultSmtpPort   = 587
)

// AlarmAccount is the mail account alarms are sent from, together with the recipients.
// The password is stored sealed.
type AlarmAccount struct {
	Server         string   `yaml:"server"`
	Port           int      `yaml:"port"`
	Username       string   `yaml:"username"`
	SealedPassword string   `yaml:"password"`
	Recipients     []string `yaml:"recipients"`
}

// NewAlarmAccount seals password with sealer. Empty server and port use the defaults.
func NewAlarmAccount(server string, port int, username, password string, sealer *encryption.Sealer) (*AlarmAccount, error) {
	if username == "" || password == "" {
		return nil, errors.New("a username and password are required")
	}
	if server == "" {
		server = DefaultSmtpServer
	}
	if port <= 0 {
		port = DefaultSmtpPort
	}

	sealed, err := sealer.Seal(password)
	if err != nil {
		return nil, fmt.Errorf("failed to seal password: %w", err)
	}

	return &AlarmAccount{
		Server:         server,
		Port:           port,
		Username:       username,
		SealedPassword: sealed,
	}, nil
}

// AddRecipient appends address unless it is already present.
func (a *AlarmAccount) AddRecipient(address string) error {
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", address, err)
	}
	if slices.Contains(a.Recipients, parsed.Address) {
		return nil
	}
	a.Recipients = append(a.Recipients, parsed.Address)
	return nil
}

// Sender opens the sealed password and returns an SMTP sender for the account.
func (a *AlarmAccount) Sender(sealer *encryption.Sealer) (*SmtpAlarmSender, error) {
	password, err := sealer.Open(a.SealedPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to open alarm account password: %w", err)
	}
	return NewSmtpAlarmSender(a.Server, a.Port, a.Username, password, slices.Clone(a.Recipients)), nil
}

// LoadAlarmAccount reads the account file. It returns ErrAccountNotFound when the file
// does not exist.
func LoadAlarmAccount(path string) (*AlarmAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to read alarm account file: %w", err)
	}

	var account AlarmAccount
	if err := yaml.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse alarm account file: %w", err)
	}
	return &account, nil
}

// SaveAlarmAccount writes the account file, readable by the owner only.
func SaveAlarmAccount(path string, account *AlarmAccount) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create alarm account directory: %w", err)
	}

	data, err := yaml.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal alarm account: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write alarm account file: %w", err)
	}
	return nil
}
