package eventsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/backend/core"
)

type debugLogger struct {
	core.Logger
	msgs []string
}

func (l *debugLogger) Debug(msg string, _ ...interface{}) {
	l.msgs = append(l.msgs, msg)
}

func TestLogPublisher_Publish(t *testing.T) {
	logger := new(debugLogger)
	pub := NewLogPublisher(logger)

	for i := 0; i < 1000; i++ {
		require.NoError(t, pub.Publish(context.Background(),
			core.NewEvent(core.EventAttendanceRecorded, i),
			core.NewEvent(core.EventPaymentRecorded, i),
		))
	}
	assert.Len(t, logger.msgs, 2000)
	assert.Equal(t, "event "+core.EventAttendanceRecorded, logger.msgs[0])
	assert.Equal(t, "event "+core.EventPaymentRecorded, logger.msgs[1])
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(), core.NewEvent(core.EventUserCreated, nil), core.NewEvent(core.EventStudentEnrolled, nil)))
	assert.Equal(t, []string{core.EventUserCreated, core.EventStudentEnrolled}, r.Names())
	assert.Len(t, r.Events(), 2)

	r.Reset()
	assert.Empty(t, r.Names())
}
