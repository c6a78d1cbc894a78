package publishing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/yeti47/securitycam/ccc/logging"
	eventlevel "github.com/yeti47/securitycam/event-level"
	"github.com/yeti47/securitycam/notifications"
)

const (
	publishTimeout = 2 * time.Second

	DefaultConnectRetryInterval = 2 * time.Second
	DefaultConnectWait          = 5 * time.Second
)

var ErrNotConnected = errors.New("mqtt not connected")

type Settings struct {
	Broker      string // e.g. tcp://localhost:1883
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string

	ConnectRetryInterval time.Duration // Pause between connection attempts
	ConnectWait          time.Duration // How long Connect waits before leaving the attempts to the background
}

// LevelMessage is the retained payload of <prefix>/<camera>/level.
type LevelMessage struct {
	CameraID  string    `json:"camera_id"`
	SessionID string    `json:"session_id"`
	From      int       `json:"from"`
	Level     int       `json:"level"`
	Name      string    `json:"name"`
	Direction string    `json:"direction"`
	At        time.Time `json:"at"`
}

// AlarmMessage is the payload of <prefix>/<camera>/alarm.
type AlarmMessage struct {
	CameraID  string    `json:"camera_id"`
	SessionID string    `json:"session_id"`
	Level     int       `json:"level"`
	At        time.Time `json:"at"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
}

// MQTTPublisher fans level transitions and alarm outcomes out to an MQTT broker so that
// home automation systems can react to them.
type MQTTPublisher struct {
	settings Settings
	logger   logging.Logger
	client   mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

func NewMQTTPublisher(settings Settings, logger logging.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logging.NopLogger
	}
	if settings.TopicPrefix == "" {
		settings.TopicPrefix = "securitycam"
	}
	if settings.ConnectRetryInterval <= 0 {
		settings.ConnectRetryInterval = DefaultConnectRetryInterval
	}
	if settings.ConnectWait <= 0 {
		settings.ConnectWait = DefaultConnectWait
	}
	return &MQTTPublisher{
		settings: settings,
		logger:   logger,
	}
}

// Connect starts connecting to the broker. A broker that cannot be reached within
// ConnectWait is retried in the background until Close, and messages published
// meanwhile fail with ErrNotConnected. A lost connection is re-established the same way.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.settings.Broker)
	opts.SetClientID(p.settings.ClientID)
	if p.settings.Username != "" {
		opts.SetUsername(p.settings.Username)
		opts.SetPassword(p.settings.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(p.settings.ConnectRetryInterval)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("MQTT connection established", "broker", p.settings.Broker, "client_id", p.settings.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("MQTT connection lost, will auto-reconnect", "broker", p.settings.Broker, "error", err)
	}

	p.client = mqtt.NewClient(opts)

	p.logger.Info("Connecting to MQTT broker", "broker", p.settings.Broker)

	token := p.client.Connect()

	wait := time.NewTimer(p.settings.ConnectWait)
	defer wait.Stop()

	select {
	case <-token.Done():
	case <-wait.C:
		p.logger.Warn("MQTT broker not reachable yet, retrying in background", "broker", p.settings.Broker,
			"interval", p.settings.ConnectRetryInterval)
		return nil
	case <-ctx.Done():
		p.client.Disconnect(0)
		return fmt.Errorf("mqtt connection aborted: %w", ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

func (p *MQTTPublisher) setConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.client != nil
}

// LevelTopic returns the topic a camera's level is published to.
func (p *MQTTPublisher) LevelTopic(cameraID string) string {
	return p.settings.TopicPrefix + "/" + cameraID + "/level"
}

// AlarmTopic returns the topic a camera's alarms are published to.
func (p *MQTTPublisher) AlarmTopic(cameraID string) string {
	return p.settings.TopicPrefix + "/" + cameraID + "/alarm"
}

// PublishTransition publishes the new level as a retained message.
func (p *MQTTPublisher) PublishTransition(t eventlevel.Transition) error {
	msg := LevelMessage{
		CameraID:  t.CameraID,
		SessionID: t.SessionID,
		From:      int(t.From),
		Level:     int(t.To),
		Name:      t.To.String(),
		Direction: t.Direction(),
		At:        t.At.UTC(),
	}
	return p.publish(p.LevelTopic(t.CameraID), true, msg)
}

// PublishAlarm publishes the outcome of an alarm delivery.
func (p *MQTTPublisher) PublishAlarm(result notifications.DispatchResult) error {
	msg := AlarmMessage{
		CameraID:  result.Alarm.CameraID,
		SessionID: result.Alarm.SessionID,
		Level:     int(result.Alarm.Level),
		At:        result.Alarm.At.UTC(),
		Delivered: result.Err == nil,
	}
	if result.Err != nil {
		msg.Error = result.Err.Error()
	}
	return p.publish(p.AlarmTopic(result.Alarm.CameraID), false, msg)
}

func (p *MQTTPublisher) publish(topic string, retained bool, msg any) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		p.countError()
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.countError()
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish to %s failed: %w", topic, err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	p.logger.Debug("MQTT message published", "topic", topic, "size", len(payload))
	return nil
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// OnTransition publishes a transition reported by a running pipeline.
func (p *MQTTPublisher) OnTransition(t eventlevel.Transition) {
	if err := p.PublishTransition(t); err != nil {
		p.logger.Warn("Failed to publish transition", "camera", t.CameraID, "error", err)
	}
}

// OnAlarm publishes an alarm outcome reported by an alert dispatcher.
func (p *MQTTPublisher) OnAlarm(result notifications.DispatchResult) {
	if err := p.PublishAlarm(result); err != nil {
		p.logger.Warn("Failed to publish alarm", "camera", result.Alarm.CameraID, "error", err)
	}
}

// Stats contains publisher statistics
type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		Connected: p.connected,
		Published: p.published,
		Errors:    p.errors,
	}
}

// Close disconnects, or stops the connection attempts when the broker was never reached.
func (p *MQTTPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
		p.logger.Info("MQTT disconnected")
	}
	p.setConnected(false)
	return nil
}
