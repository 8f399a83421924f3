package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KevinKickass/ShackControl/internal/config"
	"github.com/KevinKickass/ShackControl/internal/control"
	"github.com/KevinKickass/ShackControl/internal/interfaces"
	"github.com/KevinKickass/ShackControl/internal/types"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	commandWait = 10 * time.Second
	tokenWait   = 5 * time.Second
)

// Broker is the part of mqtt.Client the publisher uses.
type Broker interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Publisher mirrors session snapshots to MQTT and accepts action names
// on the command topic.
type Publisher struct {
	client Broker
	panel  interfaces.Panel
	logger *zap.Logger
	qos    byte

	stateTopic        string
	commandTopic      string
	availabilityTopic string
}

func NewPublisher(cfg config.MQTTConfig, panel interfaces.Panel, sessionID string, logger *zap.Logger) *Publisher {
	p := newPublisher(nil, cfg, panel, logger)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("shackcontrol-%s-%.8s", panel.Kind(), sessionID)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetWill(p.availabilityTopic, "offline", p.qos, true)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		p.onConnect(client)
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		p.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	p.client = mqtt.NewClient(opts)
	return p
}

func newPublisher(client Broker, cfg config.MQTTConfig, panel interfaces.Panel, logger *zap.Logger) *Publisher {
	base := strings.TrimSuffix(cfg.TopicPrefix, "/") + "/" + string(panel.Kind())
	return &Publisher{
		client:            client,
		panel:             panel,
		logger:            logger.With(zap.String("component", "mqtt")),
		qos:               byte(cfg.QoS),
		stateTopic:        base + "/state",
		commandTopic:      base + "/command",
		availabilityTopic: base + "/availability",
	}
}

// Start connects in the background. The broker being unreachable is
// logged and retried, never fatal.
func (p *Publisher) Start() {
	token := p.client.Connect()
	go func() {
		if token.WaitTimeout(tokenWait) && token.Error() != nil {
			p.logger.Warn("MQTT initial connection failed", zap.Error(token.Error()))
		}
	}()
}

func (p *Publisher) Stop() {
	if t := p.client.Publish(p.availabilityTopic, p.qos, true, "offline"); t != nil {
		t.WaitTimeout(time.Second)
	}
	p.client.Disconnect(250)
	p.logger.Info("MQTT disconnected")
}

func (p *Publisher) onConnect(client Broker) {
	p.logger.Info("MQTT connected", zap.String("command_topic", p.commandTopic))
	client.Publish(p.availabilityTopic, p.qos, true, "online")
	if token := client.Subscribe(p.commandTopic, p.qos, p.handleCommand); token.WaitTimeout(tokenWait) && token.Error() != nil {
		p.logger.Error("MQTT subscribe failed", zap.Error(token.Error()))
	}
	p.Publish(p.panel.Snapshot())
}

// Publish implements session.Observer.
func (p *Publisher) Publish(s types.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}

	token := p.client.Publish(p.stateTopic, p.qos, true, payload)
	// nicht auf den Broker warten, der Aufrufer ist die Session-Schleife
	go func() {
		if token.WaitTimeout(tokenWait) && token.Error() != nil {
			p.logger.Debug("MQTT publish failed", zap.Error(token.Error()))
		}
	}()
}

func (p *Publisher) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))

	action, err := control.ParseAction(payload)
	if err != nil || !interfaces.RemoteAllowed(action) {
		p.logger.Warn("Unknown MQTT command ignored", zap.String("payload", payload))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandWait)
	defer cancel()

	if _, err := p.panel.Submit(ctx, action); err != nil {
		p.logger.Warn("MQTT command failed",
			zap.String("action", string(action)),
			zap.Error(err))
		return
	}
	p.logger.Info("MQTT command executed", zap.String("action", string(action)))
}
