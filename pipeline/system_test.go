package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystem(t *testing.T) {
	back := newHarness(t, 1, &scriptedPolicy{})
	front := newHarness(t, 1, &scriptedPolicy{})
	back.o.settings.CameraID = "back"

	s := NewSystem(nil)
	require.NoError(t, s.Add(front.o))
	require.NoError(t, s.Add(back.o))
	assert.Error(t, s.Add(front.o))

	o, err := s.Camera("front")
	require.NoError(t, err)
	assert.Same(t, front.o, o)

	_, err = s.Camera("garage")
	assert.ErrorIs(t, err, ErrCameraNotFound)

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "back", statuses[0].CameraID)
	assert.Equal(t, "front", statuses[1].CameraID)
	assert.Equal(t, StateNew, statuses[0].State)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Shutdown())

	for _, status := range s.Statuses() {
		assert.Equal(t, StateStopped, status.State)
		assert.Equal(t, "idle", status.LevelName)
	}
}
