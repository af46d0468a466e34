package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCloser bool

func (c fakeCloser) IsClosed() bool { return bool(c) }

func TestAnyClosed(t *testing.T) {
	tests := []struct {
		name    string
		conn    fakeCloser
		channel fakeCloser
		want    bool
	}{
		{"BothOpen", false, false, false},
		{"ChannelClosed", false, true, true},
		{"ConnectionClosed", true, false, true},
		{"BothClosed", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, anyClosed(tt.conn, tt.channel))
		})
	}
}

func TestAMQPQueue_NeedsReconnectWithoutConnection(t *testing.T) {
	q := &AMQPBookingQueue{url: "amqp://localhost", queueName: "booking.events"}
	assert.True(t, q.needsReconnect())
}
