package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/linksmart/wot-servient/servient"
	"github.com/linksmart/wot-servient/wot"
	"github.com/sirupsen/logrus"
)

var (
	_ servient.Advertiser = (*MQTTAnnouncer)(nil)
	_ servient.Solicitor  = (*MQTTSolicitor)(nil)
)

const (
	DefaultTopicPrefix = "wot"
	mqttQoS            = 1
	mqttTimeout        = 10 * time.Second
)

// MQTTConfig configures the broker connection
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewMQTTClient connects to the broker
func NewMQTTClient(conf MQTTConfig, logger logrus.FieldLogger) (mqtt.Client, error) {
	log := logger.WithField("component", "mqtt")
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(conf.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("Lost connection to %s: %s", conf.Broker, err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Infof("Connected to %s", conf.Broker)
		})
	if conf.Username != "" {
		opts.SetUsername(conf.Username)
		opts.SetPassword(conf.Password)
	}

	client := mqtt.NewClient(opts)
	if err := wait(client.Connect()); err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", conf.Broker, err)
	}
	return client, nil
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("timed out after %s", mqttTimeout)
	}
	return token.Error()
}

func tdTopic(prefix, id string) string {
	return prefix + "/td/" + id
}

// MQTTAnnouncer publishes TDs of exposed Things as retained messages under {prefix}/td/{id}
type MQTTAnnouncer struct {
	client mqtt.Client
	prefix string
	log    *logrus.Entry
}

func NewMQTTAnnouncer(client mqtt.Client, prefix string, logger logrus.FieldLogger) *MQTTAnnouncer {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTAnnouncer{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    logger.WithField("component", "mqtt"),
	}
}

func (a *MQTTAnnouncer) Advertise(td wot.ThingDescription) error {
	b, err := json.Marshal(td)
	if err != nil {
		return fmt.Errorf("error serializing TD: %w", err)
	}
	topic := tdTopic(a.prefix, td.ID)
	if err := wait(a.client.Publish(topic, mqttQoS, true, b)); err != nil {
		return fmt.Errorf("error publishing to %s: %w", topic, err)
	}
	a.log.WithField("thing", td.ID).Debugf("Published TD to %s", topic)
	return nil
}

// Withdraw clears the retained TD
func (a *MQTTAnnouncer) Withdraw(id string) error {
	topic := tdTopic(a.prefix, id)
	if err := wait(a.client.Publish(topic, mqttQoS, true, []byte{})); err != nil {
		return fmt.Errorf("error clearing %s: %w", topic, err)
	}
	a.log.WithField("thing", id).Debugf("Cleared %s", topic)
	return nil
}

// MQTTSolicitor collects the TDs announced on the broker
type MQTTSolicitor struct {
	client mqtt.Client
	prefix string
	log    *logrus.Entry
}

func NewMQTTSolicitor(client mqtt.Client, prefix string, logger logrus.FieldLogger) *MQTTSolicitor {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &MQTTSolicitor{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    logger.WithField("component", "mqtt"),
	}
}

// Solicit subscribes to the announcements until ctx is done
func (s *MQTTSolicitor) Solicit(ctx context.Context) (<-chan wot.ThingDescription, error) {
	out := make(chan wot.ThingDescription)
	done := make(chan struct{})
	topic := tdTopic(s.prefix, "+")

	// guards out against messages delivered after the unsubscription
	var mu sync.RWMutex
	var closed bool

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		if len(msg.Payload()) == 0 {
			return
		}
		var td wot.ThingDescription
		if err := json.Unmarshal(msg.Payload(), &td); err != nil {
			s.log.Debugf("Skipping invalid TD on %s: %s", msg.Topic(), err)
			return
		}
		mu.RLock()
		defer mu.RUnlock()
		if closed {
			return
		}
		select {
		case out <- td:
		case <-done:
		}
	}
	if err := wait(s.client.Subscribe(topic, mqttQoS, handler)); err != nil {
		return nil, fmt.Errorf("error subscribing to %s: %w", topic, err)
	}

	go func() {
		<-ctx.Done()
		close(done)
		if err := wait(s.client.Unsubscribe(topic)); err != nil {
			s.log.Warnf("Error unsubscribing from %s: %s", topic, err)
		}
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}
