package alarm

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeti47/securitycam/app"
	"github.com/yeti47/securitycam/config"
	"github.com/yeti47/securitycam/notifications"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	accountFile := filepath.Join(dir, "alarm.yaml")
	configPath := filepath.Join(dir, "config.json")

	data := `{"alarm": {"account_file": "` + filepath.ToSlash(accountFile) + `", "secret": "kitchen-window"}}`
	require.NoError(t, os.WriteFile(configPath, []byte(data), 0644))
	return configPath, accountFile
}

func execute(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := Command(&configPath)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitAndAddRecipient(t *testing.T) {
	configPath, accountFile := writeConfig(t)

	out, err := execute(t, configPath, "init", "--skip-verify", "-u", "camera@example.com", "-p", "app-password")
	require.NoError(t, err)
	assert.Contains(t, out, "Alarm account saved")

	_, err = execute(t, configPath, "add-recipient", "owner@example.com", "Neighbour <neighbour@example.com>", "owner@example.com")
	require.NoError(t, err)

	account, err := notifications.LoadAlarmAccount(accountFile)
	require.NoError(t, err)
	assert.Equal(t, notifications.DefaultSmtpServer, account.Server)
	assert.Equal(t, []string{"owner@example.com", "neighbour@example.com"}, account.Recipients)
	assert.NotEqual(t, "app-password", account.SealedPassword)

	sealer, err := app.NewSealer(config.AlarmConfig{Secret: "kitchen-window"})
	require.NoError(t, err)
	password, err := sealer.Open(account.SealedPassword)
	require.NoError(t, err)
	assert.Equal(t, "app-password", password)

	// Re-initialising keeps the recipients.
	_, err = execute(t, configPath, "init", "--skip-verify", "-u", "camera@example.com", "-p", "new-password")
	require.NoError(t, err)
	account, err = notifications.LoadAlarmAccount(accountFile)
	require.NoError(t, err)
	assert.Len(t, account.Recipients, 2)
}

func TestInit_RequiresCredentials(t *testing.T) {
	configPath, _ := writeConfig(t)
	t.Setenv(PasswordEnv, "")

	_, err := execute(t, configPath, "init", "--skip-verify", "-u", "camera@example.com")
	assert.Error(t, err)
}

func TestInit_PasswordFromEnvironment(t *testing.T) {
	configPath, accountFile := writeConfig(t)
	t.Setenv(PasswordEnv, "from-env")

	_, err := execute(t, configPath, "init", "--skip-verify", "-u", "camera@example.com")
	require.NoError(t, err)

	_, err = notifications.LoadAlarmAccount(accountFile)
	assert.NoError(t, err)
}

func TestAddRecipient_WithoutAccount(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := execute(t, configPath, "add-recipient", "owner@example.com")
	assert.ErrorContains(t, err, "alarm init")
}

func TestAddRecipient_InvalidAddress(t *testing.T) {
	configPath, _ := writeConfig(t)
	_, err := execute(t, configPath, "init", "--skip-verify", "-u", "camera@example.com", "-p", "pw")
	require.NoError(t, err)

	_, err = execute(t, configPath, "add-recipient", "not an address")
	assert.Error(t, err)
}

func TestTest_WithoutTransport(t *testing.T) {
	configPath, _ := writeConfig(t)

	_, err := execute(t, configPath, "test")
	assert.ErrorContains(t, err, "no alarm transport")
}
