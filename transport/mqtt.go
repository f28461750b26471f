package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/match"
	"golang.org/x/time/rate"

	"github.com/fleetline/agvctl/emit"
	"github.com/fleetline/agvctl/wire"
)

const qos = byte(1)

// Options configures an MQTTTransport.
type Options struct {
	Broker            string // e.g. "tcp://broker.example.com:1883"
	Interface         string // topic interface segment, usually "uagv"
	Version           string // topic version segment, e.g. "v2"
	Manufacturer      string
	Serial            string
	Username          string
	Password          PasswordSource // nil for an unauthenticated broker
	ClientIDSeed      string         // prefix; a random suffix is appended via uuid
	VisualizationRate rate.Limit     // publishes/sec; 0 disables throttling
	DedupeSize        int            // inbound LRU size; 0 disables dedupe
	Emitter           emit.Emitter
}

// MQTTTransport implements Transport over an MQTT v3.1.1 broker, mirroring
// the topic layout, retained connection documents, and will message of a
// fielded VDA5050 vehicle (§6).
type MQTTTransport struct {
	opts   Options
	client mqtt.Client

	orderTopic          string
	instantActionsTopic string
	stateTopic          string
	connectionTopic     string
	visualizationTopic  string
	subTopic            string // single wildcard subscription covering order/instantActions/connection

	mu       sync.Mutex
	consumer Consumer
	seq      uint32

	dedupe  *lru.Cache
	visLim  *rate.Limiter
}

// NewMQTTTransport builds a transport and its topic set, but does not
// connect — call Connect to do that.
func NewMQTTTransport(opts Options) *MQTTTransport {
	mk := func(sub string) string {
		return wire.Topic(opts.Interface, opts.Version, opts.Manufacturer, opts.Serial, sub)
	}
	t := &MQTTTransport{
		opts:                opts,
		orderTopic:          mk("order"),
		instantActionsTopic: mk("instantActions"),
		stateTopic:          mk("state"),
		connectionTopic:     mk("connection"),
		visualizationTopic:  mk("visualization"),
		subTopic:            mk("+"),
	}
	if opts.DedupeSize > 0 {
		t.dedupe = lru.New(opts.DedupeSize)
	}
	if opts.VisualizationRate > 0 {
		t.visLim = rate.NewLimiter(opts.VisualizationRate, 1)
	}
	return t
}

func (t *MQTTTransport) SetConsumer(c Consumer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumer = c
}

// stampHeader fills in the next monotonic header sequence number, the
// current timestamp, and the vehicle's identity fields.
func (t *MQTTTransport) stampHeader() wire.Header {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	t.mu.Unlock()
	return wire.Header{
		HeaderID:     seq,
		Timestamp:    time.Now().UTC(),
		Version:      t.opts.Version,
		Manufacturer: t.opts.Manufacturer,
		SerialNumber: t.opts.Serial,
	}
}

// Connect dials the broker, registers a retained CONNECTIONBROKEN will
// message, subscribes to the order and instantActions topics, and on
// success publishes a retained ONLINE connection document — the will/
// online/offline sequence of the original mqtt_connector.
func (t *MQTTTransport) Connect() error {
	clientID := t.opts.ClientIDSeed + "-" + uuid.NewString()

	willConn := wire.Connection{
		Header:          t.stampHeader(),
		ConnectionState: wire.ConnectionBroken,
	}
	willPayload, err := json.Marshal(willConn)
	if err != nil {
		return fmt.Errorf("transport: encode will message: %w", err)
	}

	copts := mqtt.NewClientOptions().
		AddBroker(t.opts.Broker).
		SetClientID(clientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetWill(t.connectionTopic, string(willPayload), qos, true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost)

	if t.opts.Username != "" {
		copts.SetUsername(t.opts.Username)
	}
	if t.opts.Password != nil {
		pw, err := t.opts.Password.Password(context.Background())
		if err != nil {
			return fmt.Errorf("transport: password source: %w", err)
		}
		copts.SetPassword(pw)
	}

	t.client = mqtt.NewClient(copts)

	const maxInitialAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxInitialAttempts; attempt++ {
		tok := t.client.Connect()
		if tok.WaitTimeout(15 * time.Second) {
			if tok.Error() == nil {
				return nil
			}
			lastErr = tok.Error()
		} else {
			lastErr = fmt.Errorf("transport: connect timed out")
		}
		t.emitDebug("mqtt_connect_attempt_failed", map[string]interface{}{"attempt": attempt, "error": lastErr.Error()})
		time.Sleep(reconnectBackoff(attempt, 500*time.Millisecond, 10*time.Second))
	}
	return fmt.Errorf("transport: connect: %w after %d attempts", lastErr, maxInitialAttempts)
}

func (t *MQTTTransport) onConnect(client mqtt.Client) {
	client.Subscribe(t.subTopic, qos, t.onMessage)
	t.emitDebug("mqtt_connected", nil)

	online := wire.Connection{
		Header:          t.stampHeader(),
		ConnectionState: wire.ConnectionOnline,
	}
	if err := t.QueueConnection(online); err != nil {
		t.emitDebug("mqtt_connect_publish_failed", map[string]interface{}{"error": err.Error()})
	}
}

func (t *MQTTTransport) onConnectionLost(_ mqtt.Client, err error) {
	t.emitDebug("mqtt_connection_lost", map[string]interface{}{"error": err.Error()})
	// paho's AutoReconnect drives the actual retry with its own internal
	// backoff; reconnectBackoff below is only used by callers doing a
	// manual Connect retry loop (e.g. the initial dial).
}

// reconnectBackoff computes the delay before a manual reconnect attempt,
// exponential with jitter, the same shape as a node retry policy's backoff
// computation, applied here to the transport's own connection attempts
// rather than a task execution.
func reconnectBackoff(attempt int, base, maxDelay time.Duration) time.Duration {
	d := base * (1 << attempt)
	if d > maxDelay {
		d = maxDelay
	}
	return d + time.Duration(rand.Int63n(int64(base)+1)) //nolint:gosec // jitter, not security-sensitive
}

// onMessage is the single callback registered for the wildcard
// subscription; it routes each delivery by matching the concrete topic it
// arrived on against this transport's known topic set, rather than
// registering one paho callback per sub-topic.
func (t *MQTTTransport) onMessage(c mqtt.Client, msg mqtt.Message) {
	switch {
	case match.Match(msg.Topic(), t.orderTopic):
		t.onOrder(c, msg)
	case match.Match(msg.Topic(), t.instantActionsTopic):
		t.onInstantActions(c, msg)
	case match.Match(msg.Topic(), t.connectionTopic):
		t.onConnectionEcho(c, msg)
	default:
		t.emitDebug("mqtt_unrecognized_topic", map[string]interface{}{"topic": msg.Topic()})
	}
}

func (t *MQTTTransport) onConnectionEcho(_ mqtt.Client, msg mqtt.Message) {
	var conn wire.Connection
	if err := json.Unmarshal(msg.Payload(), &conn); err != nil {
		t.emitDebug("mqtt_connection_decode_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	t.mu.Lock()
	c := t.consumer
	t.mu.Unlock()
	if c != nil {
		c.ReceivedConnection(conn)
	}
}

func (t *MQTTTransport) onOrder(_ mqtt.Client, msg mqtt.Message) {
	if t.seenDuplicate(t.orderTopic, msg.Payload()) {
		return
	}
	order, err := wire.DecodeOrder(msg.Payload())
	if err != nil {
		t.emitDebug("mqtt_order_decode_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	t.mu.Lock()
	c := t.consumer
	t.mu.Unlock()
	if c != nil {
		c.ReceivedOrder(order)
	}
}

func (t *MQTTTransport) onInstantActions(_ mqtt.Client, msg mqtt.Message) {
	if t.seenDuplicate(t.instantActionsTopic, msg.Payload()) {
		return
	}
	ia, err := wire.DecodeInstantActions(msg.Payload())
	if err != nil {
		t.emitDebug("mqtt_instant_actions_decode_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	t.mu.Lock()
	c := t.consumer
	t.mu.Unlock()
	if c != nil {
		c.ReceivedInstantActions(ia)
	}
}

// seenDuplicate recognizes a redelivered at-least-once message by
// (topic, headerId) and drops it before it reaches the consumer.
func (t *MQTTTransport) seenDuplicate(topic string, payload []byte) bool {
	if t.dedupe == nil {
		return false
	}
	r := gjson.GetBytes(payload, "headerId")
	if !r.Exists() {
		return false
	}
	key := fmt.Sprintf("%s#%d", topic, r.Uint())
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.dedupe.Get(key); ok {
		return true
	}
	t.dedupe.Add(key, struct{}{})
	return false
}

func (t *MQTTTransport) QueueConnection(conn wire.Connection) error {
	if conn.Header.HeaderID == 0 {
		conn.Header = t.stampHeader()
	}
	data, err := json.Marshal(conn)
	if err != nil {
		return err
	}
	return t.publish(t.connectionTopic, data, true)
}

func (t *MQTTTransport) QueueState(s wire.State) error {
	data, err := wire.EncodeState(s, false)
	if err != nil {
		return err
	}
	return t.publish(t.stateTopic, data, false)
}

func (t *MQTTTransport) QueueVisualization(v wire.Visualization) error {
	if t.visLim != nil && !t.visLim.Allow() {
		return nil
	}
	v.Header = t.stampHeader()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.publish(t.visualizationTopic, data, false)
}

func (t *MQTTTransport) publish(topic string, data []byte, retained bool) error {
	if t.client == nil || !t.client.IsConnectionOpen() {
		return fmt.Errorf("transport: not connected")
	}
	tok := t.client.Publish(topic, qos, retained, data)
	tok.Wait()
	return tok.Error()
}

// Disconnect publishes a retained OFFLINE connection document and closes
// the broker connection.
func (t *MQTTTransport) Disconnect() error {
	offline := wire.Connection{
		Header:          t.stampHeader(),
		ConnectionState: wire.ConnectionOffline,
	}
	err := t.QueueConnection(offline)
	if t.client != nil {
		t.client.Disconnect(250)
	}
	return err
}

func (t *MQTTTransport) emitDebug(msg string, meta map[string]interface{}) {
	if t.opts.Emitter == nil {
		return
	}
	t.opts.Emitter.Emit(emit.Event{Msg: msg, Meta: meta})
}
