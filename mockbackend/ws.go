package mockbackend

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/programme-lv/contest-client/httpjson"
	"github.com/programme-lv/contest-client/logger"
)

// liveChannel streams the judging updates of one submission as JSON text
// frames and closes normally after the final one
func (s *Server) liveChannel(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "submissionId")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := s.judge.Listen(ctx, id)
	if err != nil {
		httpjson.HandleError(log, w, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		log.Warn("failed to accept live channel", "error", err)
		return
	}
	defer c.CloseNow()

	// the client sends nothing, reading only handles control frames
	ctx = c.CloseRead(ctx)

	keepAliveTicker := time.NewTicker(s.pingInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-keepAliveTicker.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			pingCancel()
			if err != nil {
				log.Debug("live channel ping failed", "submission_id", id, "error", err)
				return
			}
		case upd, ok := <-updates:
			if !ok {
				c.Close(websocket.StatusNormalClosure, "judging finished")
				return
			}
			if err := wsjson.Write(ctx, c, upd); err != nil {
				log.Debug("live channel write failed", "submission_id", id, "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
