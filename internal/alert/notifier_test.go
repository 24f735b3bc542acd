package alert

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNoOpNotifier(t *testing.T) {
	var n Notifier = NewNoOpNotifier()
	assert.NoError(t, n.Send("anything"))
	assert.NoError(t, n.Close())
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogNotifier(zap.New(core), 2)

	for i := 1; i <= 3; i++ {
		assert.NoError(t, n.Send(fmt.Sprintf("message %d", i)))
	}
	assert.Equal(t, []string{"message 2", "message 3"}, n.Recent())
	assert.Equal(t, 3, logs.FilterMessage("alert").Len())

	assert.NoError(t, n.Close())
	assert.ErrorIs(t, n.Send("late"), ErrClosed)
}
