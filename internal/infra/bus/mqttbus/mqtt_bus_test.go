// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mqttbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	corebus "github.com/ManuGH/namewhisk/internal/bus"
	infrabus "github.com/ManuGH/namewhisk/internal/infra/bus"
	"github.com/ManuGH/namewhisk/internal/log"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestClientOptions(t *testing.T) {
	cfg := Config{
		BrokerURL: "tcp://broker.example:1883",
		Username:  "u",
		Password:  "p",
	}.withDefaults()
	sink := infrabus.NewEventSink(transportName, 1)
	defer sink.Close()

	opts := clientOptions(cfg, "namewhisk-abc", sink, log.WithComponent("test"))

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker.example:1883", opts.Servers[0].Host)
	assert.Equal(t, "namewhisk-abc", opts.ClientID)
	assert.Equal(t, "u", opts.Username)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.Order)
	assert.Equal(t, 10*time.Second, opts.MaxReconnectInterval)
	assert.Equal(t, 30*time.Second, time.Duration(opts.KeepAlive)*time.Second)
}

func TestConnectionLostEmitsOffline(t *testing.T) {
	sink := infrabus.NewEventSink(transportName, 4)
	defer sink.Close()
	opts := clientOptions(Config{BrokerURL: "tcp://x:1"}.withDefaults(), "c", sink, log.WithComponent("test"))

	opts.OnConnect(nil)
	opts.OnConnectionLost(nil, assert.AnError)
	opts.OnConnect(nil)

	ev := <-sink.C()
	assert.Equal(t, corebus.EventOffline, ev.Kind)
	assert.ErrorIs(t, ev.Err, assert.AnError)
	assert.Equal(t, corebus.EventOnline, (<-sink.C()).Kind)
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewDialer(Config{
		BrokerURL:      "tcp://127.0.0.1:1",
		ConnectTimeout: 500 * time.Millisecond,
	}).Dial(ctx, "x")
	require.Error(t, err)
}

func TestSubscriptionPreservesOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	unsubscribed := false
	s := newSubscription("namewhisk/c1/request", func() error {
		unsubscribed = true
		return nil
	})

	// Delivery must not block even though nobody reads yet.
	for _, p := range []string{"1", "2", "3"} {
		s.handle(nil, fakeMessage{topic: "namewhisk/c1/request", payload: []byte(p)})
	}

	for _, want := range []string{"1", "2", "3"} {
		select {
		case m := <-s.C():
			assert.Equal(t, want, string(m.Payload))
			assert.Equal(t, "namewhisk/c1/request", m.Topic)
		case <-time.After(time.Second):
			t.Fatalf("message %s not delivered", want)
		}
	}

	require.NoError(t, s.Close())
	assert.True(t, unsubscribed)
	assert.ErrorIs(t, s.Close(), corebus.ErrClosed)
	_, ok := <-s.C()
	assert.False(t, ok)

	// Late callbacks are ignored.
	s.handle(nil, fakeMessage{topic: "namewhisk/c1/request", payload: []byte("late")})
}
