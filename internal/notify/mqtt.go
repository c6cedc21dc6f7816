package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"Voltaris/internal/config"
	"Voltaris/internal/repo"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const mqttQoS = 1

// LeadEvent is the JSON payload published for each new lead.
type LeadEvent struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Interest  string    `json:"interest,omitempty"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

func newLeadEvent(lead repo.Lead) LeadEvent {
	contact := lead.Phone
	if contact == "" {
		contact = lead.Email
	}
	return LeadEvent{
		ID:        lead.ID,
		Name:      lead.Name,
		Company:   lead.Company,
		Interest:  lead.Interest,
		Contact:   contact,
		CreatedAt: lead.CreatedAt,
	}
}

type MQTT struct {
	client mqtt.Client
	topic  string
	logger *logrus.Logger
}

func NewMQTT(cfg config.MQTTConfig, logger *logrus.Logger) *MQTT {
	m := &MQTT{topic: cfg.Topic, logger: logger}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID("voltaris-leads")
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Errorf("MQTT connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("MQTT connected")
	})

	m.client = mqtt.NewClient(opts)
	return m
}

// Connect waits up to timeout for the first connection. With connect retry
// enabled the client keeps dialing in the background after that.
func (m *MQTT) Connect(timeout time.Duration) error {
	m.logger.Info("Connecting to MQTT broker...")
	token := m.client.Connect()
	if !token.WaitTimeout(timeout) {
		m.logger.Warnf("MQTT broker not reachable after %s, retrying in background", timeout)
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (m *MQTT) Disconnect() {
	m.logger.Info("Disconnecting from MQTT broker...")
	m.client.Disconnect(250)
}

// NotifyLead publishes the lead event and waits for the broker ack or ctx.
func (m *MQTT) NotifyLead(ctx context.Context, lead repo.Lead) error {
	payload, err := json.Marshal(newLeadEvent(lead))
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, mqttQoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish %s: %w", m.topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", m.topic, err)
	}
	m.logger.Debugf("Published lead %d to %s", lead.ID, m.topic)
	return nil
}
