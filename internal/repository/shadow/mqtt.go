package shadow

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/oshokin/gas-guard/internal/config"
	"github.com/oshokin/gas-guard/internal/domain/gas"
)

// MQTTClient is the subset of the paho client used by MQTTStore.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// Shadow MQTT operations and reply suffixes.
const (
	operationGet    = "get"
	operationUpdate = "update"
	suffixAccepted  = "/accepted"
	suffixRejected  = "/rejected"

	// disconnectQuiesce is how long Disconnect waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250
	// connectTimeout bounds the initial broker handshake.
	connectTimeout = 10 * time.Second
)

var (
	// errRequestRejected is returned when the shadow service rejects a request.
	errRequestRejected = errors.New("shadow request rejected")
	// errInvalidCA is returned when the CA file holds no usable certificate.
	errInvalidCA = errors.New("no certificates found in CA file")
)

// mqttReply is a reply routed to the request that carries its client token.
type mqttReply struct {
	// accepted is true for replies on the /accepted topic.
	accepted bool
	// payload is the raw reply body.
	payload []byte
	// envelope holds the client token and rejection details.
	envelope *gas.Reply
}

// MQTTStore talks to the shadow service over its reserved MQTT topics.
// Replies are matched to requests by clientToken, so concurrent requests for
// the same device do not interfere.
type MQTTStore struct {
	// client is the connected MQTT client.
	client MQTTClient
	// qos is used for requests and reply subscriptions.
	qos byte
	// shadowName selects a named shadow; empty means the classic shadow.
	shadowName string
	// newToken generates client tokens.
	newToken func() string
	// pending maps client tokens to the channel of the waiting request.
	pending map[string]chan mqttReply
	// mu protects pending.
	mu sync.Mutex
}

// NewMQTTStore creates a store on top of a connected client. Call Subscribe before use.
func NewMQTTStore(client MQTTClient, qos byte, shadowName string) *MQTTStore {
	return &MQTTStore{
		client:     client,
		qos:        qos,
		shadowName: shadowName,
		newToken:   uuid.NewString,
		pending:    make(map[string]chan mqttReply),
	}
}

// DialMQTT connects to the broker described by cfg.
func DialMQTT(ctx context.Context, cfg *config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetResumeSubs(true).
		SetOrderMatters(false)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	client := mqtt.NewClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	return client, nil
}

// Disconnect closes an MQTT client created by DialMQTT.
func Disconnect(client mqtt.Client) {
	client.Disconnect(disconnectQuiesce)
}

// Subscribe registers the reply topics of every device.
func (s *MQTTStore) Subscribe(ctx context.Context) error {
	if err := waitToken(ctx, s.client.SubscribeMultiple(s.replyFilters(), s.dispatch)); err != nil {
		return fmt.Errorf("subscribe to shadow replies: %w", err)
	}

	return nil
}

// Unsubscribe removes the reply subscriptions.
func (s *MQTTStore) Unsubscribe(ctx context.Context) error {
	filters := make([]string, 0, len(s.replyFilters()))
	for filter := range s.replyFilters() {
		filters = append(filters, filter)
	}

	return waitToken(ctx, s.client.Unsubscribe(filters...))
}

// Get requests the device shadow.
func (s *MQTTStore) Get(ctx context.Context, deviceID string) (*gas.ShadowDocument, error) {
	payload, err := s.request(ctx, deviceID, operationGet, gas.EncodeRequest)
	if err != nil {
		return nil, err
	}

	document, err := gas.ParseShadow(payload)
	if err != nil {
		return nil, fmt.Errorf("parse thing shadow: %w", err)
	}

	return document, nil
}

// MergeDesired publishes a partial update of the desired section and waits for its acceptance.
func (s *MQTTStore) MergeDesired(ctx context.Context, deviceID string, delta gas.Delta) error {
	_, err := s.request(ctx, deviceID, operationUpdate, func(token string) ([]byte, error) {
		return gas.EncodeDesiredUpdate(delta, token)
	})

	return err
}

// request publishes one shadow request and waits for the reply carrying its client token.
func (s *MQTTStore) request(
	ctx context.Context,
	deviceID string,
	operation string,
	encode func(token string) ([]byte, error),
) ([]byte, error) {
	token := s.newToken()

	payload, err := encode(token)
	if err != nil {
		return nil, err
	}

	// Register before publishing so a fast reply is never lost.
	replies := make(chan mqttReply, 1)

	s.mu.Lock()
	s.pending[token] = replies
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, token)
		s.mu.Unlock()
	}()

	topic := s.topic(deviceID, operation)
	if err := waitToken(ctx, s.client.Publish(topic, s.qos, false, payload)); err != nil {
		return nil, fmt.Errorf("publish %s: %w", topic, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-replies:
		if reply.accepted {
			return reply.payload, nil
		}

		if reply.envelope.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, deviceID)
		}

		return nil, fmt.Errorf("%w: %d %s", errRequestRejected, reply.envelope.Code, reply.envelope.Message)
	}
}

// dispatch routes an incoming reply to the waiting request.
func (s *MQTTStore) dispatch(_ mqtt.Client, message mqtt.Message) {
	var accepted bool

	switch topic := message.Topic(); {
	case strings.HasSuffix(topic, suffixAccepted):
		accepted = true
	case strings.HasSuffix(topic, suffixRejected):
	default:
		return
	}

	envelope, err := gas.ParseReply(message.Payload())
	if err != nil || envelope.ClientToken == "" {
		return
	}

	s.mu.Lock()
	replies, ok := s.pending[envelope.ClientToken]
	delete(s.pending, envelope.ClientToken)
	s.mu.Unlock()

	if !ok {
		return
	}

	replies <- mqttReply{
		accepted: accepted,
		payload:  message.Payload(),
		envelope: envelope,
	}
}

// topic returns the request topic of an operation for one device.
func (s *MQTTStore) topic(deviceID, operation string) string {
	return s.prefix(deviceID) + operation
}

// replyFilters returns the wildcard filters covering the replies of every device.
func (s *MQTTStore) replyFilters() map[string]byte {
	prefix := s.prefix("+")

	return map[string]byte{
		prefix + operationGet + "/+":    s.qos,
		prefix + operationUpdate + "/+": s.qos,
	}
}

// prefix renders $aws/things/<thing>/shadow/[name/<name>/].
func (s *MQTTStore) prefix(thing string) string {
	prefix := "$aws/things/" + thing + "/shadow/"
	if s.shadowName != "" {
		prefix += "name/" + s.shadowName + "/"
	}

	return prefix
}

// waitToken waits for an MQTT token or the context, whichever comes first.
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newTLSConfig builds the mutual TLS configuration used by AWS IoT.
//
//nolint:nilnil // A nil config means plain TCP.
func newTLSConfig(cfg *config.MQTTConfig) (*tls.Config, error) {
	if cfg.CAFile == "" && cfg.CertFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(filepath.Clean(cfg.CAFile))
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errInvalidCA
		}

		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" {
		certificate, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}

		tlsConfig.Certificates = []tls.Certificate{certificate}
	}

	return tlsConfig, nil
}
