package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"stablevault/internal/storage"
)

const (
	streamPollInterval = time.Second
	streamWriteWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is already open to the UI layer via CORS; the websocket
	// surface mirrors that.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStreamMovement streams status transitions of one movement over a
// websocket. The current state is pushed immediately, then on every change,
// and the connection closes once the movement reaches a terminal status.
func (s *Server) handleStreamMovement(w http.ResponseWriter, r *http.Request) {
	movementID := chi.URLParam(r, "id")
	if _, err := s.movements.GetByID(r.Context(), movementID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "movement not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := s.log.With().Str("movement_id", movementID).Logger()
	ctx := r.Context()

	// Reader goroutine: we never expect client messages, but reading is
	// required to notice the peer closing the connection.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastStatus string
	var lastTxHash string
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		m, err := s.movements.GetByID(ctx, movementID)
		if err != nil {
			logger.Warn().Err(err).Msg("movement stream lookup failed")
			return
		}

		if string(m.Status) != lastStatus || m.TxHash != lastTxHash {
			lastStatus = string(m.Status)
			lastTxHash = m.TxHash
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(toMovementResponse(m)); err != nil {
				logger.Debug().Err(err).Msg("movement stream write failed")
				return
			}
		}

		if m.Status.Terminal() {
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(m.Status)))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}
	}
}
