package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Publish decoded messages to an MQTT broker.
 *
 * Description:	Each message is one JSON document on the configured
 *		topic.  The connection is retried in the background so a
 *		broker that isn't up yet, or goes away for a while, does
 *		not stop the receiver.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttPublishTimeout = 5 * time.Second

// MQTTPayload is what gets published.
type MQTTPayload struct {
	Text  string    `json:"text"`
	Hex   string    `json:"hex"`
	Bytes int       `json:"bytes"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Heard time.Time `json:"heard"`
}

// mqttPublisher is the part of mqtt.Client we use.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink is a Sink.
type MQTTSink struct {
	client mqttPublisher
	topic  string
	logger *log.Logger
}

/*------------------------------------------------------------------
 *
 * Name:        NewMQTTSink
 *
 * Purpose:     Connect to the broker.
 *
 * Description:	Returns without waiting for the first connection.
 *		Messages published while disconnected are queued by
 *		the client library.
 *
 *----------------------------------------------------------------*/

func NewMQTTSink(cfg MQTTConfig, logger *log.Logger) *MQTTSink {
	logger = logger.WithPrefix("mqtt")

	var opts = mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("Connected to broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Connection lost", "err", err)
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Info("Attempting to reconnect")
	})

	var client = mqtt.NewClient(opts)
	client.Connect()

	return &MQTTSink{client: client, topic: cfg.Topic, logger: logger}
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Deliver(msg Message, heard time.Time) error {
	var payload, err = json.Marshal(MQTTPayload{
		Text:  msg.Text(),
		Hex:   hex.EncodeToString(msg.Payload),
		Bytes: len(msg.Payload),
		Start: msg.Start,
		End:   msg.End,
		Heard: heard,
	})
	if err != nil {
		return err
	}

	var token = m.client.Publish(m.topic, 0, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish to %s timed out", m.topic)
	}

	return token.Error()
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
