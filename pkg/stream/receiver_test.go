package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer starts a websocket server that runs script on the accepted connection
func streamServer(t *testing.T, script func(conn *websocket.Conn)) string {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, env Envelope) {
	t.Helper()
	data, err := json.Marshal(env)
	if assert.NoError(t, err) {
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
	}
}

func botSays(id, text string) Activity {
	return Activity{ID: id, Type: "message", From: ChannelAccount{ID: "bot", Role: "bot"}, Text: text}
}

func userSays(id, text string) Activity {
	return Activity{ID: id, Type: "message", From: ChannelAccount{ID: "user-1", Role: "user"}, Text: text}
}

func takeWithin(t *testing.T, r *Receiver) (Activity, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.Take(ctx)
}

func TestReceiver_DeliversRemoteActivities(t *testing.T) {
	release := make(chan struct{})
	url := streamServer(t, func(conn *websocket.Conn) {
		writeEnvelope(t, conn, Envelope{Watermark: "1", Activities: []Activity{userSays("u1", "hello"), botSays("b1", "hi there")}})
		// liveness ping
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, nil))
		assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
		writeEnvelope(t, conn, Envelope{Activities: []Activity{botSays("b2", "second")}})
		<-release
	})
	defer close(release)

	r, err := Dial(context.Background(), url, Options{UserID: "user-1", ChunkSize: 8, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer r.Close()

	first, err := takeWithin(t, r)
	require.NoError(t, err)
	assert.Equal(t, "b1", first.ID, "self-originated activity must be dropped")
	assert.Equal(t, "hi there", first.Text)

	second, err := takeWithin(t, r)
	require.NoError(t, err)
	assert.Equal(t, "b2", second.ID)

	wm, ok := r.Watermark()
	assert.True(t, ok)
	assert.Equal(t, int64(1), wm)
}

func TestReceiver_WatermarkNeverDecreases(t *testing.T) {
	release := make(chan struct{})
	url := streamServer(t, func(conn *websocket.Conn) {
		writeEnvelope(t, conn, Envelope{Watermark: "5", Activities: []Activity{botSays("a", "a")}})
		writeEnvelope(t, conn, Envelope{Watermark: "3", Activities: []Activity{botSays("b", "b")}})
		writeEnvelope(t, conn, Envelope{Watermark: "7", Activities: []Activity{botSays("c", "c")}})
		<-release
	})
	defer close(release)

	r, err := Dial(context.Background(), url, Options{UserID: "user-1", Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer r.Close()

	var observed []int64
	for i := 0; i < 3; i++ {
		_, err := takeWithin(t, r)
		require.NoError(t, err)
		wm, ok := r.Watermark()
		require.True(t, ok)
		observed = append(observed, wm)
	}

	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1])
	}
	assert.Equal(t, int64(7), observed[len(observed)-1])
}

func TestReceiver_PeerClose(t *testing.T) {
	url := streamServer(t, func(conn *websocket.Conn) {
		writeEnvelope(t, conn, Envelope{Activities: []Activity{botSays("b1", "bye soon")}})
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		// wait for the acknowledgement
		_, _, _ = conn.ReadMessage()
	})

	r, err := Dial(context.Background(), url, Options{UserID: "user-1", Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer r.Close()

	activity, err := takeWithin(t, r)
	require.NoError(t, err)
	assert.Equal(t, "b1", activity.ID)

	_, err = takeWithin(t, r)
	assert.ErrorIs(t, err, ErrConnectionDropped)

	// drained: exhaustion, reported without blocking and without a second drop error
	_, err = takeWithin(t, r)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.NotErrorIs(t, err, ErrConnectionDropped)
	_, err = takeWithin(t, r)
	assert.ErrorIs(t, err, ErrExhausted)

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop did not exit")
	}
}

func TestReceiver_CloseDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	url := streamServer(t, func(conn *websocket.Conn) {
		<-release
	})
	defer close(release)

	r, err := Dial(context.Background(), url, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)

	require.NoError(t, r.Close())
	assert.NoError(t, r.Close())

	_, err = takeWithin(t, r)
	assert.ErrorIs(t, err, ErrConnectionDropped)
	_, err = takeWithin(t, r)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestDial_Failure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), Options{Logger: zerolog.Nop()})
	assert.Error(t, err)
}
