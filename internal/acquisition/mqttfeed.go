package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tremornet/tremor-monitor/internal/metrics"
)

// MQTTFeed is the production Feed: the waveform source is explicitly a
// "subscribe-style feed" (§1) that publishes one complete one-minute
// trace per station per message — so, unlike the teacher's mqttclient
// (which forwards arbitrary byte payloads upward), this adapter decodes
// each message directly into a Trace and slots it into the minute it
// belongs to. Connection/reconnect wiring mirrors
// internal/mqttclient/client.go.
type MQTTFeed struct {
	conn   mqtt.Client
	log    zerolog.Logger
	topics []string

	mu      sync.Mutex
	cond    *sync.Cond
	minutes map[int64]map[string]Trace // minute start as Unix seconds -> station -> trace
}

// MQTTFeedOptions mirrors mqttclient.Options.
type MQTTFeedOptions struct {
	BrokerURL string
	ClientID  string
	Topics    []string // e.g. ["tremor/waveform/+"]
	Username  string
	Password  string
	Log       zerolog.Logger
}

// traceMessage is the wire payload: one station's complete one-minute
// trace, published once per station per minute.
type traceMessage struct {
	Station     string    `json:"station"`
	SampleRate  float64   `json:"sample_rate"`
	MinuteStart time.Time `json:"minute_start"`
	Samples     []float64 `json:"samples"`
}

// NewMQTTFeed connects to the broker and begins buffering incoming
// one-minute traces, keyed by their declared minute.
func NewMQTTFeed(opts MQTTFeedOptions) (*MQTTFeed, error) {
	f := &MQTTFeed{
		log:     opts.Log,
		topics:  opts.Topics,
		minutes: make(map[int64]map[string]Trace),
	}
	f.cond = sync.NewCond(&f.mu)

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetOnConnectHandler(f.onConnect).
		SetConnectionLostHandler(f.onConnectionLost)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	f.conn = mqtt.NewClient(clientOpts)
	token := f.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return f, nil
}

func (f *MQTTFeed) onConnect(client mqtt.Client) {
	for _, topic := range f.topics {
		token := client.Subscribe(topic, 0, f.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			f.log.Error().Err(err).Str("topic", topic).Msg("mqtt subscribe failed")
		}
	}
	f.log.Info().Strs("topics", f.topics).Msg("mqtt waveform feed connected")
}

func (f *MQTTFeed) onConnectionLost(_ mqtt.Client, err error) {
	f.log.Warn().Err(err).Msg("mqtt waveform feed connection lost, will auto-reconnect")
}

func (f *MQTTFeed) onMessage(_ mqtt.Client, msg mqtt.Message) {
	metrics.MQTTMessagesTotal.Inc()
	var tm traceMessage
	if err := json.Unmarshal(msg.Payload(), &tm); err != nil {
		f.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("failed to decode waveform message")
		return
	}
	if tm.Station == "" || len(tm.Samples) == 0 {
		return
	}
	minuteKey := tm.MinuteStart.UTC().Truncate(time.Minute).Unix()

	f.mu.Lock()
	stations, ok := f.minutes[minuteKey]
	if !ok {
		stations = make(map[string]Trace)
		f.minutes[minuteKey] = stations
	}
	stations[tm.Station] = Trace{Station: tm.Station, SampleRate: tm.SampleRate, Samples: tm.Samples}
	f.mu.Unlock()
	f.cond.Broadcast()
}

// Fetch waits (up to ctx's deadline) for traces belonging to the
// [start,end) minute to arrive, then returns whatever has accumulated.
// Returning a partial station set is expected — §4.5 treats missing
// stations as 0.0 RSAM, not a fetch failure. An empty result after the
// deadline is reported as an error so the minute is skipped entirely
// (§4.4: "the pipeline for that minute is skipped entirely").
func (f *MQTTFeed) Fetch(ctx context.Context, start, end time.Time) (map[string]Trace, error) {
	if err := ValidateWindow(start, end); err != nil {
		return nil, err
	}
	key := start.UTC().Truncate(time.Minute).Unix()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		f.cond.Broadcast() // wake the waiter so it can observe ctx.Done
		f.mu.Unlock()
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	for {
		if stations, ok := f.minutes[key]; ok && len(stations) > 0 {
			out := make(map[string]Trace, len(stations))
			for k, v := range stations {
				out[k] = v
			}
			delete(f.minutes, key)
			f.gcOldMinutesLocked(key)
			return out, nil
		}
		select {
		case <-ctx.Done():
			delete(f.minutes, key)
			return nil, fmt.Errorf("acquisition timeout: no waveform traces received for minute %s", start.UTC().Format(time.RFC3339))
		default:
		}
		f.cond.Wait()
	}
}

// gcOldMinutesLocked drops any buffered minute more than 2 minutes in the
// past relative to key, so a station that never gets fetched for doesn't
// leak memory forever. Caller must hold f.mu.
func (f *MQTTFeed) gcOldMinutesLocked(key int64) {
	for k := range f.minutes {
		if key-k > 120 {
			delete(f.minutes, k)
		}
	}
}

// Close disconnects the MQTT client.
func (f *MQTTFeed) Close() {
	f.conn.Disconnect(1000)
}
