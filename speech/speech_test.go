package speech

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecognizer replays a script of events; onHalt is sent after Halt.
// With open set the stream is never closed, like a browser that sends no
// "end" event.
type fakeRecognizer struct {
	script []Event
	onHalt []Event
	open   bool
	halts  atomic.Int32
	ch     chan Event
}

func (f *fakeRecognizer) Begin(context.Context) (<-chan Event, error) {
	f.ch = make(chan Event, len(f.script)+len(f.onHalt)+1)
	for _, ev := range f.script {
		f.ch <- ev
	}
	if f.onHalt == nil && !f.open {
		close(f.ch)
	}
	return f.ch, nil
}

func (f *fakeRecognizer) Halt() error {
	f.halts.Add(1)
	if f.onHalt != nil {
		go func() {
			time.Sleep(10 * time.Millisecond)
			for _, ev := range f.onHalt {
				f.ch <- ev
			}
			if !f.open {
				close(f.ch)
			}
		}()
	}
	return nil
}

func capture(t *testing.T, rec *fakeRecognizer) (Result, error) {
	t.Helper()
	h, err := NewCapturer(rec).Start(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return h.Stop(ctx)
}

func TestStartWithoutRecognizer(t *testing.T) {
	_, err := NewCapturer(nil).Start(context.Background())
	var unsupported *UnsupportedError
	assert.True(t, errors.As(err, &unsupported))
}

func TestFirstFinalWins(t *testing.T) {
	res, err := capture(t, &fakeRecognizer{script: []Event{
		{Kind: KindInterim, Text: "北"},
		{Kind: KindFinal, Text: " 北京三日游 "},
		{Kind: KindFinal, Text: "上海"},
		{Kind: KindEnd},
	}})
	require.NoError(t, err)
	assert.Equal(t, "北京三日游", res.Text)
}

func TestNoSpeechIsEmptyText(t *testing.T) {
	res, err := capture(t, &fakeRecognizer{script: []Event{{Kind: KindNoSpeech}}})
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)

	res, err = capture(t, &fakeRecognizer{script: []Event{{Kind: KindError, Error: "no-speech"}}})
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}

func TestRecognizerErrorFails(t *testing.T) {
	_, err := capture(t, &fakeRecognizer{script: []Event{{Kind: KindError, Error: "not-allowed"}}})
	var recErr *RecognitionError
	require.True(t, errors.As(err, &recErr))
	assert.Equal(t, "not-allowed", recErr.Code)
}

func TestEndWithoutFinalIsEmpty(t *testing.T) {
	res, err := capture(t, &fakeRecognizer{script: []Event{{Kind: KindInterim, Text: "半句"}, {Kind: KindEnd}}})
	require.NoError(t, err)
	assert.Equal(t, "", res.Text)
}

func TestSettlesWithoutEndEvent(t *testing.T) {
	cases := []struct {
		name    string
		event   Event
		text    string
		errCode string
	}{
		{"final", Event{Kind: KindFinal, Text: "北京三日游"}, "北京三日游", ""},
		{"no speech", Event{Kind: KindNoSpeech}, "", ""},
		{"no speech error", Event{Kind: KindError, Error: "no-speech"}, "", ""},
		{"error", Event{Kind: KindError, Error: "network"}, "", "network"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := &fakeRecognizer{script: []Event{{Kind: KindInterim, Text: "北"}, c.event}, open: true}
			h, err := NewCapturer(rec).Start(context.Background())
			require.NoError(t, err)

			select {
			case <-h.Done():
			case <-time.After(time.Second):
				t.Fatal("handle did not settle")
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			res, err := h.Stop(ctx)
			if c.errCode != "" {
				var recErr *RecognitionError
				require.True(t, errors.As(err, &recErr), "got %v", err)
				assert.Equal(t, c.errCode, recErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.text, res.Text)
			assert.Zero(t, rec.halts.Load(), "a settled capture needs no halt")
		})
	}
}

func TestStopResolvesOnFinalAfterHalt(t *testing.T) {
	rec := &fakeRecognizer{onHalt: []Event{{Kind: KindFinal, Text: "午餐45元"}}, open: true}
	h, err := NewCapturer(rec).Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := h.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "午餐45元", res.Text)
}

func TestStopWaitsForInFlightResult(t *testing.T) {
	rec := &fakeRecognizer{
		script: []Event{{Kind: KindInterim, Text: "午"}},
		onHalt: []Event{{Kind: KindFinal, Text: "午餐45元"}, {Kind: KindEnd}},
	}
	h, err := NewCapturer(rec).Start(context.Background())
	require.NoError(t, err)

	res, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "午餐45元", res.Text)
	assert.EqualValues(t, 1, rec.halts.Load())

	_, err = h.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNotActive)
	assert.EqualValues(t, 1, rec.halts.Load())
}

func TestStopContextOnlyBoundsTheWait(t *testing.T) {
	rec := &fakeRecognizer{onHalt: []Event{{Kind: KindFinal, Text: "晚"}}}
	rec.onHalt = append(rec.onHalt, Event{Kind: KindEnd})
	h, err := NewCapturer(rec).Start(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Stop(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	res, err := h.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "晚", res.Text)
}

func dialRelay(t *testing.T, target string) *websocket.Conn {
	t.Helper()
	router := httprouter.New()
	router.GET("/api/speech/ws", NewRelay().Serve)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/speech/ws?target=" + target
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func TestRelayRoundTrip(t *testing.T) {
	conn := dialRelay(t, TargetAmount)

	require.NoError(t, conn.WriteJSON(inbound{Action: "start"}))
	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "listen", msg.Action)

	require.NoError(t, conn.WriteJSON(inbound{Event: KindInterim, Text: "打车"}))
	require.NoError(t, conn.WriteJSON(inbound{Action: "stop"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "halt", msg.Action)

	require.NoError(t, conn.WriteJSON(inbound{Event: KindFinal, Text: "打车３２.５元"}))
	require.NoError(t, conn.WriteJSON(inbound{Event: KindEnd}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "result", msg.Action)
	assert.Equal(t, "打车３２.５元", msg.Text)
	assert.Equal(t, "32.5", msg.Amount)
}

func TestRelayFinalWithoutEnd(t *testing.T) {
	conn := dialRelay(t, TargetText)
	var msg outbound

	for _, want := range []string{"北京三日游", "上海两日游"} {
		require.NoError(t, conn.WriteJSON(inbound{Action: "start"}))
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "listen", msg.Action)

		require.NoError(t, conn.WriteJSON(inbound{Event: KindFinal, Text: want}))
		require.NoError(t, conn.WriteJSON(inbound{Action: "stop"}))
		msg = outbound{}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "result", msg.Action)
		assert.Equal(t, want, msg.Text)
	}
}

func TestRelaySettlesWithoutEnd(t *testing.T) {
	cases := []struct {
		name   string
		event  inbound
		action string
		errMsg string
	}{
		{"no speech", inbound{Event: KindNoSpeech}, "result", ""},
		{"error", inbound{Event: KindError, Error: "not-allowed"}, "error", "not-allowed"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			conn := dialRelay(t, TargetItem)
			require.NoError(t, conn.WriteJSON(inbound{Action: "start"}))
			var msg outbound
			require.NoError(t, conn.ReadJSON(&msg))
			require.Equal(t, "listen", msg.Action)

			require.NoError(t, conn.WriteJSON(c.event))
			require.NoError(t, conn.ReadJSON(&msg))
			assert.Equal(t, c.action, msg.Action)
			assert.Equal(t, "", msg.Text)
			assert.Contains(t, msg.Error, c.errMsg)
		})
	}
}

func TestRelayNaturalEnd(t *testing.T) {
	conn := dialRelay(t, TargetText)

	require.NoError(t, conn.WriteJSON(inbound{Action: "start"}))
	var msg outbound
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "listen", msg.Action)

	require.NoError(t, conn.WriteJSON(inbound{Event: KindError, Error: "no-speech"}))
	require.NoError(t, conn.WriteJSON(inbound{Event: KindEnd}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "result", msg.Action)
	assert.Equal(t, "", msg.Text)
	assert.Empty(t, msg.Amount)
}
