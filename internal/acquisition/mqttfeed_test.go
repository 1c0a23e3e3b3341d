package acquisition

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeMessage is a minimal mqtt.Message double, just enough of the
// interface for onMessage to decode a payload.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestMQTTFeed() *MQTTFeed {
	f := &MQTTFeed{
		log:     zerolog.Nop(),
		minutes: make(map[int64]map[string]Trace),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func TestMQTTFeed_FetchAssemblesBufferedTraces(t *testing.T) {
	f := newTestMQTTFeed()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	payload, _ := json.Marshal(struct {
		Station     string    `json:"station"`
		SampleRate  float64   `json:"sample_rate"`
		MinuteStart time.Time `json:"minute_start"`
		Samples     []float64 `json:"samples"`
	}{Station: "REF", SampleRate: 100, MinuteStart: start, Samples: []float64{1, 2, 3}})

	f.onMessage(nil, fakeMessage{topic: "tremor/waveform/REF", payload: payload})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	traces, err := f.Fetch(ctx, start, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	tr, ok := traces["REF"]
	if !ok {
		t.Fatal("expected trace for REF")
	}
	if len(tr.Samples) != 3 || tr.Samples[1] != 2 {
		t.Errorf("unexpected samples: %v", tr.Samples)
	}
}

func TestMQTTFeed_FetchTimesOutWithNoData(t *testing.T) {
	f := newTestMQTTFeed()
	start := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, start, start.Add(time.Minute)); err == nil {
		t.Fatal("expected timeout error when no traces arrive")
	}
}

func TestMQTTFeed_FetchWaitsThenAssembles(t *testing.T) {
	f := newTestMQTTFeed()
	start := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)

	go func() {
		time.Sleep(20 * time.Millisecond)
		payload, _ := json.Marshal(struct {
			Station     string    `json:"station"`
			SampleRate  float64   `json:"sample_rate"`
			MinuteStart time.Time `json:"minute_start"`
			Samples     []float64 `json:"samples"`
		}{Station: "ABC", SampleRate: 100, MinuteStart: start, Samples: []float64{9, 8}})
		f.onMessage(nil, fakeMessage{topic: "tremor/waveform/ABC", payload: payload})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	traces, err := f.Fetch(ctx, start, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, ok := traces["ABC"]; !ok {
		t.Fatal("expected trace for ABC to arrive before timeout")
	}
}

func TestMQTTFeed_OnMessageIgnoresMalformedPayload(t *testing.T) {
	f := newTestMQTTFeed()
	f.onMessage(nil, fakeMessage{topic: "tremor/waveform/REF", payload: []byte("not json")})

	f.mu.Lock()
	n := len(f.minutes)
	f.mu.Unlock()
	if n != 0 {
		t.Errorf("malformed payload should not create a buffered minute, got %d", n)
	}
}
