package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i474232898/clock-weather/internal/store"
	"github.com/i474232898/clock-weather/internal/weather"
)

func parseEvent(t *testing.T, raw string) (string, map[string]any) {
	t.Helper()
	require.True(t, strings.HasSuffix(raw, "\n\n"))

	lines := strings.Split(strings.TrimSuffix(raw, "\n\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "event: "))
	require.True(t, strings.HasPrefix(lines[1], "data: "))

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &data))
	return strings.TrimPrefix(lines[0], "event: "), data
}

func TestWriteEventWeather(t *testing.T) {
	p, err := weather.ParsePayload([]byte(payloadBody))
	require.NoError(t, err)

	var buf bytes.Buffer
	fetchedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writeEvent(&buf, weather.Update{Payload: p, FetchedAt: fetchedAt}))

	name, data := parseEvent(t, buf.String())
	require.Equal(t, "weather", name)
	require.Equal(t, 9.4, data["temperatureC"])
	require.Equal(t, "2024-06-01T12:00:00Z", data["fetchedAt"])
}

func TestWriteEventError(t *testing.T) {
	var buf bytes.Buffer
	err := &weather.UpstreamError{Status: 403, Message: "invalid API key, please check your API key"}
	require.NoError(t, writeEvent(&buf, weather.Update{Err: err}))

	name, data := parseEvent(t, buf.String())
	require.Equal(t, "error", name)
	require.EqualValues(t, 403, data["status"])
	require.Equal(t, err.Message, data["message"])
}

func splitFrames(raw string) []string {
	var frames []string
	for _, f := range strings.SplitAfter(raw, "\n\n") {
		if f != "" {
			frames = append(frames, f)
		}
	}
	return frames
}

func TestEventStreamSendsStatusThenUpdates(t *testing.T) {
	p, err := weather.ParsePayload([]byte(payloadBody))
	require.NoError(t, err)

	updates := make(chan weather.Update, 2)
	updates <- weather.Update{Payload: p, FetchedAt: time.Now()}
	updates <- weather.Update{Err: &weather.NetworkError{Err: errors.New("offline")}}
	close(updates)

	var unsubscribed atomic.Int32
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	status := weather.Status{State: weather.StateFetching, TTL: "10m0s"}
	eventStream(status, updates, func() { unsubscribed.Add(1) }, time.Hour)(w)

	frames := splitFrames(buf.String())
	require.Len(t, frames, 3)

	name, data := parseEvent(t, frames[0])
	require.Equal(t, "status", name)
	require.Equal(t, string(weather.StateFetching), data["state"])
	require.Equal(t, "10m0s", data["ttl"])

	name, _ = parseEvent(t, frames[1])
	require.Equal(t, "weather", name)

	name, data = parseEvent(t, frames[2])
	require.Equal(t, "error", name)
	require.EqualValues(t, 502, data["status"])

	require.EqualValues(t, 1, unsubscribed.Load())
}

// brokenConn fails every write once it has seen marker.
type brokenConn struct {
	marker string
	seen   bytes.Buffer
}

func (b *brokenConn) Write(p []byte) (int, error) {
	b.seen.Write(p)
	if strings.Contains(string(p), b.marker) {
		return 0, errors.New("connection reset by peer")
	}
	return len(p), nil
}

func TestEventStreamUnsubscribesWhenClientGoes(t *testing.T) {
	src := &stubSource{}
	configs := store.NewMemoryStore(weather.ProviderConfig{})
	svc := weather.NewService(weather.NewCache(src, configs, weather.CacheOptions{}), configs, src, weather.ServiceOptions{})

	updates, unsubscribe := svc.Subscribe()
	conn := &brokenConn{marker: "event: status"}
	eventStream(svc.Status(), updates, unsubscribe, time.Hour)(bufio.NewWriter(conn))

	require.Contains(t, conn.seen.String(), `"state":"empty"`)
	_, open := <-updates
	require.False(t, open, "subscription must be released")
}

func TestEventStreamKeepalive(t *testing.T) {
	updates := make(chan weather.Update)
	var unsubscribed atomic.Int32
	conn := &brokenConn{marker: ": keepalive"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		eventStream(weather.Status{State: weather.StateEmpty}, updates, func() { unsubscribed.Add(1) }, 5*time.Millisecond)(bufio.NewWriter(conn))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the keepalive write failed")
	}
	require.True(t, strings.HasPrefix(conn.seen.String(), "event: status\n"))
	require.Contains(t, conn.seen.String(), ": keepalive\n\n")
	require.EqualValues(t, 1, unsubscribed.Load())
}
