package api

import (
	"context"
	"strings"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/gorilla/websocket"
)

// StreamComments follows new comments on a post over a websocket until ctx
// is done or the server closes the stream.
func (c *Client) StreamComments(ctx context.Context, postID string, fn func(model.Comment)) error {
	u := c.baseURL + "/ws/comments/" + seg(postID)
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return statusError("stream comments", resp)
		}
		return &apperr.RequestError{Op: "stream comments", Err: err}
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineNow())
		_ = conn.Close()
	})
	defer stop()

	for {
		var cm model.Comment
		if err := conn.ReadJSON(&cm); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return &apperr.RequestError{Op: "stream comments", Err: err}
		}
		if err := model.Validate(&cm); err != nil {
			c.log.Warn().Err(err).Msg("skipping invalid comment event")
			continue
		}
		fn(cm)
	}
}
