package sink

import (
	"encoding/binary"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors "golang.org/x/xerrors"

	"github.com/lanikai/camsource/internal/capture"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.nv21")
	s, err := NewFileSink(path)
	require.NoError(t, err)

	require.NoError(t, s.AddFrameData([]byte{1, 2, 3}))
	require.NoError(t, s.AddFrameData([]byte{4, 5, 6}))
	assert.Equal(t, 2, s.Frames())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)

	assert.Equal(t, errClosed, s.AddFrameData([]byte{7}))
}

func TestFileSinkBadPath(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "frames.nv21"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

type countingEncoder struct {
	n   int
	err error
}

func (e *countingEncoder) AddFrameData([]byte) error {
	e.n++
	return e.err
}

func TestTee(t *testing.T) {
	a, b := &countingEncoder{}, &countingEncoder{}
	tee := Tee{a, b}
	require.NoError(t, tee.AddFrameData(nil))
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)

	boom := errors.New("boom")
	a.err = boom
	err := tee.AddFrameData(nil)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 2, b.n, "a failing encoder must not starve the rest")

	assert.Equal(t, boom, Tee{a}.AddFrameData(nil))

	var _ capture.Encoder = tee
}

func TestWebsocketHandler(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(&WebsocketHandler{Source: b, Width: 4, Height: 2})
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	// Wait for the handler to subscribe.
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	frame := make([]byte, capture.FrameSize(4, 2))
	frame[0] = 42
	require.NoError(t, b.AddFrameData(frame))

	ws.SetReadDeadline(time.Now().Add(time.Second))
	typ, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, typ)
	require.Len(t, msg, FrameHeaderSize+len(frame))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(msg[0:4]))
	assert.Equal(t, uint32(2), binary.BigEndian.Uint32(msg[4:8]))
	assert.Equal(t, frame, msg[FrameHeaderSize:])

	// Closing the source ends the stream.
	require.NoError(t, b.Close())
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
