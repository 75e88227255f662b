package afsk

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToken is an mqtt.Token that is already done.
type fakeToken struct {
	err      error
	finished bool
}

func (f *fakeToken) Wait() bool                     { return f.finished }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return f.finished }
func (f *fakeToken) Error() error                   { return f.err }

func (f *fakeToken) Done() <-chan struct{} {
	var ch = make(chan struct{})
	if f.finished {
		close(ch)
	}

	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	token        *fakeToken
	sent         []published
	disconnected bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.sent = append(f.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return f.token
}

func (f *fakePublisher) Disconnect(uint) {
	f.disconnected = true
}

func TestMQTTSinkPublishes(t *testing.T) {
	var pub = &fakePublisher{token: &fakeToken{finished: true}}
	var sink = &MQTTSink{client: pub, topic: "afsk/rx", logger: quietLogger()}

	var start = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	var msg = Message{Payload: []byte("hi"), Start: start, End: start.Add(time.Second)}

	require.NoError(t, sink.Deliver(msg, start.Add(2*time.Second)))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "afsk/rx", pub.sent[0].topic)
	assert.Equal(t, byte(0), pub.sent[0].qos)
	assert.False(t, pub.sent[0].retained)

	var got MQTTPayload
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &got))
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, "6869", got.Hex)
	assert.Equal(t, 2, got.Bytes)
	assert.True(t, start.Equal(got.Start))
	assert.True(t, start.Add(2*time.Second).Equal(got.Heard))

	require.NoError(t, sink.Close())
	assert.True(t, pub.disconnected)
}

func TestMQTTSinkErrors(t *testing.T) {
	var refused = errors.New("not authorized")
	var sink = &MQTTSink{client: &fakePublisher{token: &fakeToken{finished: true, err: refused}}, topic: "t", logger: quietLogger()}

	require.ErrorIs(t, sink.Deliver(Message{Payload: []byte("x")}, time.Now()), refused)

	sink = &MQTTSink{client: &fakePublisher{token: &fakeToken{}}, topic: "t", logger: quietLogger()}
	require.ErrorContains(t, sink.Deliver(Message{Payload: []byte("x")}, time.Now()), "timed out")
}

func TestDNSSDService(t *testing.T) {
	var sv, err = DNSSDService("test tnc", 8001)
	require.NoError(t, err)

	assert.Equal(t, "test tnc", sv.Name)
	assert.Equal(t, DNS_SD_SERVICE, sv.Type)
	assert.Equal(t, 8001, sv.Port)

	sv, err = DNSSDService("", 8001)
	require.NoError(t, err)
	assert.Contains(t, sv.Name, "Samoyed AFSK")
}
