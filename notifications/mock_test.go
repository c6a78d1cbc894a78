package notifications

import (
	"context"
	"sync"
)

// mockAlarmSender records every alarm it is asked to send.
type mockAlarmSender struct {
	mu     sync.Mutex
	alarms []Alarm
	err    error
}

func (m *mockAlarmSender) SendAlarm(ctx context.Context, alarm Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms = append(m.alarms, alarm)
	return m.err
}

func (m *mockAlarmSender) sent() []Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alarm(nil), m.alarms...)
}
