package server

import (
	"net/http"
	"time"

	"github.com/bilyardvmetro/quill/internal/logctx"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	keepAlivePingInterval = 30 * time.Second
	pongWait              = 2 * keepAlivePingInterval
	writeWait             = 10 * time.Second
	streamBuffer          = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamComments pushes every comment created on the post to the socket
// until either side goes away.
func (s *Server) streamComments(w http.ResponseWriter, r *http.Request) {
	postID := mux.Vars(r)["postId"]
	l := logctx.From(r.Context(), s.log).With().Str("post", postID).Logger()

	if _, err := s.repo.GetPost(r.Context(), postID); err != nil {
		status := statusOf(err)
		writeJSON(w, status, map[string]string{"message": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan model.Comment, streamBuffer)
	unsubscribe := s.bus.Subscribe(commentTopic(postID), func(c model.Comment) {
		select {
		case ch <- c:
		default:
			l.Warn().Str("comment", c.ID).Msg("subscriber too slow, dropping comment")
		}
	})
	defer unsubscribe()

	// deadlines left over from the http server no longer apply
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the read side only watches for the peer closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	l.Debug().Msg("comment stream opened")
	ping := time.NewTicker(keepAlivePingInterval)
	defer ping.Stop()

	for {
		select {
		case c := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(c); err != nil {
				l.Debug().Err(err).Msg("comment stream write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			l.Debug().Msg("comment stream closed by peer")
			return
		case <-r.Context().Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
