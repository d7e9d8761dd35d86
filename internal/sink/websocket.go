package sink

import (
	"encoding/binary"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Frames buffered per websocket client before the oldest is dropped.
const previewBacklog = 2

const writeWait = 5 * time.Second

// FrameHeaderSize is the length of the header preceding each frame sent by
// WebsocketHandler: big-endian uint32 width, then height.
const FrameHeaderSize = 8

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// WebsocketHandler streams frames from a Broadcaster to websocket clients.
// Each frame is sent as one binary message: FrameHeaderSize bytes of
// dimensions, then the raw NV21 data.
type WebsocketHandler struct {
	Source *Broadcaster

	// Frame dimensions, as negotiated with the device.
	Width, Height int
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Upgrade websocket connection
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}
	defer ws.Close()

	log.Info("preview client %s connected", r.RemoteAddr)
	defer log.Info("preview client %s disconnected", r.RemoteAddr)

	frames := h.Source.Subscribe(previewBacklog)
	defer h.Source.Unsubscribe(frames)

	// Clients don't send anything; reading is only to notice when they go
	// away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	header := make([]byte, FrameHeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(h.Width))
	binary.BigEndian.PutUint32(header[4:8], uint32(h.Height))

	for {
		select {
		case <-gone:
			return
		case frame, ok := <-frames:
			if !ok {
				ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "capture stopped"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.send(ws, header, frame); err != nil {
				log.Debug("preview client %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}

func (h *WebsocketHandler) send(ws *websocket.Conn, header, frame []byte) error {
	ws.SetWriteDeadline(time.Now().Add(writeWait))
	w, err := ws.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return w.Close()
}
