package discovery

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct{ err error }

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return mqttQoS }
func (m *fakeMessage) Retained() bool    { return m.retained }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeBroker is a client with an in-process broker keeping retained messages
type fakeBroker struct {
	mqtt.Client

	mu           sync.Mutex
	retained     map[string][]byte
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	wg           sync.WaitGroup
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		retained: make(map[string][]byte),
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

// matches supports a single-level wildcard at the end of the filter
func matches(filter, topic string) bool {
	if strings.HasSuffix(filter, "/+") {
		prefix := strings.TrimSuffix(filter, "+")
		return strings.HasPrefix(topic, prefix) && !strings.Contains(strings.TrimPrefix(topic, prefix), "/")
	}
	return filter == topic
}

func (b *fakeBroker) deliver(handler mqtt.MessageHandler, msg mqtt.Message) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		handler(b, msg)
	}()
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := payload.([]byte)
	if retained {
		if len(p) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = p
		}
	}
	for filter, handler := range b.handlers {
		if matches(filter, topic) {
			b.deliver(handler, &fakeMessage{topic: topic, payload: p})
		}
	}
	return &fakeToken{}
}

func (b *fakeBroker) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[topic] = callback
	for t, p := range b.retained {
		if matches(topic, t) {
			b.deliver(callback, &fakeMessage{topic: t, payload: p, retained: true})
		}
	}
	return &fakeToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range topics {
		delete(b.handlers, t)
	}
	b.unsubscribed = append(b.unsubscribed, topics...)
	return &fakeToken{}
}

func TestMQTTAnnouncer(t *testing.T) {
	broker := newFakeBroker()
	logger, _ := test.NewNullLogger()
	announcer := NewMQTTAnnouncer(broker, "", logger)

	td := thing("urn:example:lamp", "lamp")
	require.NoError(t, announcer.Advertise(td))

	payload, found := broker.retained["wot/td/urn:example:lamp"]
	require.True(t, found)
	var published wot.ThingDescription
	require.NoError(t, json.Unmarshal(payload, &published))
	assert.Equal(t, "lamp", published.Title)

	require.NoError(t, announcer.Withdraw(td.ID))
	assert.Empty(t, broker.retained)
}

func TestMQTTAnnouncerError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	announcer := NewMQTTAnnouncer(&failingClient{}, "site/", logger)

	err := announcer.Advertise(thing("urn:example:lamp", "lamp"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site/td/urn:example:lamp")
}

type failingClient struct {
	mqtt.Client
}

func (c *failingClient) Publish(string, byte, bool, interface{}) mqtt.Token {
	return &fakeToken{err: assert.AnError}
}

func TestMQTTSolicitor(t *testing.T) {
	broker := newFakeBroker()
	logger, _ := test.NewNullLogger()
	announcer := NewMQTTAnnouncer(broker, "", logger)
	solicitor := NewMQTTSolicitor(broker, "", logger)

	// announced before the solicitation, delivered as retained
	require.NoError(t, announcer.Advertise(thing("urn:example:lamp", "lamp")))
	broker.Publish("wot/td/garbage", mqttQoS, true, []byte("not a TD"))

	ctx, cancel := context.WithCancel(context.Background())
	tds, err := solicitor.Solicit(ctx)
	require.NoError(t, err)

	require.NoError(t, announcer.Advertise(thing("urn:example:fan", "fan")))

	var found []string
	timeout := time.After(5 * time.Second)
	for len(found) < 2 {
		select {
		case td := <-tds:
			found = append(found, td.ID)
		case <-timeout:
			t.Fatalf("Timed out, discovered only %v", found)
		}
	}
	assert.ElementsMatch(t, []string{"urn:example:lamp", "urn:example:fan"}, found)

	cancel()
	for range tds {
	}
	broker.wg.Wait()

	broker.mu.Lock()
	defer broker.mu.Unlock()
	assert.Equal(t, []string{"wot/td/+"}, broker.unsubscribed)
	assert.Empty(t, broker.handlers)
}
