package http

import (
	"encoding/json"
	"net/http"

	"guess-the-prompt/internal/app"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Name  string   `json:"name"`
	Names []string `json:"names"`
}

func (p startPayload) players() []string {
	if len(p.Names) > 0 {
		return p.Names
	}
	return []string{p.Name}
}

type guessPayload struct {
	Text string `json:"text"`
}

type leaderboardPayload struct {
	Limit int `json:"limit"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one game session for the connection.
// The session lives as long as the socket; optional ?name= parameters (one
// per player) start the first round right away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	game, err := h.service.NewSession(r.Context())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.End(game.ID())

	updates, cancel := game.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("session", game.ID()).Msg("ws write error")
				// unblocks the read loop
				conn.Close()
				return
			}
		}
	}()

	push := func(msg outboundMessage[any]) bool {
		return deliver(send, writerDone, msg)
	}

	push(outboundMessage[any]{Type: "session", Payload: sessionPayload{SessionID: game.ID()}})

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if names := r.URL.Query()["name"]; len(names) > 0 {
		if err := game.Start(names...); err != nil {
			push(errorMessage(err))
		}
	}

	for open := true; open; {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				open = push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}})
				continue
			}
			if err := game.Start(payload.players()...); err != nil {
				open = push(errorMessage(err))
			}
		case "guess":
			var payload guessPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				open = push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid guess payload"}})
				continue
			}
			if err := game.SubmitGuess(payload.Text); err != nil {
				open = push(errorMessage(err))
			}
		case "reset":
			game.Reset()
		case "submitScore":
			acks, err := h.service.SubmitScore(r.Context(), game.ID())
			if err != nil {
				open = push(errorMessage(err))
				continue
			}
			open = push(outboundMessage[any]{Type: "submitted", Payload: acks})
		case "leaderboard":
			var payload leaderboardPayload
			if len(inbound.Payload) > 0 {
				_ = json.Unmarshal(inbound.Payload, &payload)
			}
			board, err := h.service.Leaderboard(r.Context(), payload.Limit)
			if err != nil {
				open = push(errorMessage(err))
				continue
			}
			open = push(outboundMessage[any]{Type: "leaderboard", Payload: board})
		default:
			open = push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver hands msg to the writer goroutine; false once the writer is gone.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
