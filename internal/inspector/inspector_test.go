package inspector

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mescourrou/simba/internal/record"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestServerBroadcastsFlushedRecordsToConnectedViewer(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(nopWriter{})
	srv := New(logger)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the server a moment to register the client before flushing
	time.Sleep(20 * time.Millisecond)

	err = srv.Flush([]record.Record{{Node: "r1", Time: 1.0, Stage: record.StagePhysics, Payload: "x"}})
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), "r1")
}

func TestFlushWithNoViewersIsNoop(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(nopWriter{})
	srv := New(logger)
	err := srv.Flush([]record.Record{{Node: "r1", Time: 1.0, Stage: record.StagePhysics}})
	require.NoError(t, err)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
