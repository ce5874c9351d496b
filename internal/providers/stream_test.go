package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/optiondesk/internal/domain/risk"
)

// wsFeed serves a websocket endpoint pushing the given frames.
func wsFeed(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the connection open so reads do not race the close.
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestIndexStreamServesLastFrame(t *testing.T) {
	srv := wsFeed(t, []string{
		`{"symbol":"VIX","value":18.4}`,
		`{"symbol":"VIX","value":19.1}`,
	})

	s, err := DialIndexStream(context.Background(), wsURL(srv), time.Minute)
	require.NoError(t, err)
	defer s.Close()

	// Wait for the read loop to consume both frames.
	var v float64
	require.Eventually(t, func() bool {
		v, err = s.Read(context.Background())
		return err == nil && v == 19.1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 19.1, v)
}

func TestIndexStreamBeforeFirstFrame(t *testing.T) {
	srv := wsFeed(t, nil)

	s, err := DialIndexStream(context.Background(), wsURL(srv), time.Minute)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Read(context.Background())
	assert.ErrorIs(t, err, risk.ErrDataUnavailable)
}

func TestIndexStreamGoesStale(t *testing.T) {
	srv := wsFeed(t, []string{`{"symbol":"VIX","value":21.0}`})

	s, err := DialIndexStream(context.Background(), wsURL(srv), 50*time.Millisecond)
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		_, err := s.Read(context.Background())
		return err == nil
	}, time.Second, 5*time.Millisecond)

	time.Sleep(80 * time.Millisecond)
	_, err = s.Read(context.Background())
	assert.ErrorIs(t, err, risk.ErrDataUnavailable)
}

func TestIndexStreamSkipsMalformedFrames(t *testing.T) {
	srv := wsFeed(t, []string{
		`{broken`,
		`{"symbol":"VIX","value":23.5}`,
	})

	s, err := DialIndexStream(context.Background(), wsURL(srv), time.Minute)
	require.NoError(t, err)
	defer s.Close()

	require.Eventually(t, func() bool {
		v, err := s.Read(context.Background())
		return err == nil && v == 23.5
	}, time.Second, 10*time.Millisecond)
}

func TestIndexStreamDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := DialIndexStream(ctx, "ws://127.0.0.1:1/feed", time.Minute)
	assert.Error(t, err)
}
