package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensord"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(paho.Token)
}

func TestPublisher_Publish(t *testing.T) {
	client := new(MockClient)
	p := NewPublisher(client, WithTopic("imu/gyro"), WithQoS(1))
	ev := &sensord.Event{
		Version:          sensord.EventVersion,
		Sensor:           sensord.SensorGyroUncalibrated,
		Type:             sensord.TypeGyroscopeUncalibrated,
		Source:           sensord.SourceLSM6DS3TRC,
		Timestamp:        1000,
		GyroUncalibrated: &sensord.SensorVector{V: [3]float64{0.5, -1, 0}, Status: sensord.StatusValid},
	}

	var payload []byte
	client.On("Publish", "imu/gyro", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(3).([]byte) }).
		Return(completedToken(nil)).Once()

	require.NoError(t, p.Publish(context.Background(), ev))
	client.AssertExpectations(t)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "lsm6ds3trc", decoded["source"])
	assert.Equal(t, float64(16), decoded["type"])
	assert.Equal(t, []any{0.5, float64(-1), float64(0)}, decoded["gyroUncalibrated"].(map[string]any)["v"])
}

func TestPublisher_PublishError(t *testing.T) {
	client := new(MockClient)
	p := NewPublisher(client)
	cause := errors.New("not connected")
	client.On("Publish", DefaultTopic, byte(0), false, mock.Anything).Return(completedToken(cause)).Once()

	err := p.Publish(context.Background(), &sensord.Event{})
	assert.ErrorIs(t, err, cause)
}

func TestPublisher_PublishCancelled(t *testing.T) {
	client := new(MockClient)
	p := NewPublisher(client)
	pending := &fakeToken{done: make(chan struct{})}
	client.On("Publish", DefaultTopic, byte(0), false, mock.Anything).Return(pending).Once()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, &sensord.Event{})
	assert.ErrorIs(t, err, context.Canceled)
	p.Close()
}
