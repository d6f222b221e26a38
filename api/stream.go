package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// handleStream pushes a state snapshot whenever a new frame has been drawn,
// at most StreamHz times per second.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader goroutine: only needed to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(time.Second / time.Duration(s.opts.StreamHz))
	defer t.Stop()

	var lastFrame uint64
	first := true
	for {
		select {
		case <-gone:
			return
		case <-s.closing:
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		case <-t.C:
			st := s.state()
			frame := st.Sketch.Frame
			if !first && frame == lastFrame {
				continue
			}
			first = false
			lastFrame = frame
			_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		}
	}
}
