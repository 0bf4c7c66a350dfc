package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"quiz-results-service/internal/app"
	"quiz-results-service/internal/logger"
)

// WSHandler serves a request/response websocket for a quiz-taking client.
// Every outbound message answers an inbound one; the server never pushes.
type WSHandler struct {
	service  *app.ResultService
	validate *validator.Validate
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ResultService, log *logger.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		validate: validator.New(),
		log:      log,
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

type submitPayload struct {
	Answers   []*int `json:"answers" validate:"required"`
	TimeSpent int    `json:"timeSpent" validate:"gte=0"`
}

type leaderboardPayload struct {
	Limit int `json:"limit"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the result use cases.
// The user comes from X-User-ID like on REST routes; browsers that cannot set
// headers on the upgrade request pass userId in the query instead.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := headerOrQuery(r, headerUserID, "userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}
	if err := h.service.RegisterUsername(r.Context(), userID, headerOrQuery(r, headerUserName, "username")); err != nil {
		h.log.Warn("register username failed", "userId", userID, "error", err)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", "error", err)
				_ = conn.Close()
				return
			}
		}
	}()

	// push drops messages once the writer has given up on the connection.
	push := func(msgType string, payload any) {
		select {
		case send <- outboundMessage[any]{Type: msgType, Payload: payload}:
		case <-writerDone:
		}
	}
	sendError := func(message string) {
		push("error", errorPayload{Message: message})
	}

	lb, err := h.service.Leaderboard(ctx, quizID, 0)
	if err != nil {
		sendError(err.Error())
	} else {
		push("ready", lb)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError("invalid submit payload")
				continue
			}
			if err := h.validate.Struct(payload); err != nil {
				sendError(validationMessage(err))
				continue
			}
			report, err := h.service.SubmitAttempt(ctx, userID, quizID, payload.Answers, payload.TimeSpent)
			if err != nil {
				sendError(err.Error())
				continue
			}
			push("result", report)
		case "leaderboard":
			var payload leaderboardPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					sendError("invalid leaderboard payload")
					continue
				}
			}
			lb, err := h.service.Leaderboard(ctx, quizID, payload.Limit)
			if err != nil {
				sendError(err.Error())
				continue
			}
			push("leaderboard", lb)
		case "stats":
			stats, err := h.service.Stats(ctx, userID)
			if err != nil {
				sendError(err.Error())
				continue
			}
			push("stats", stats)
		default:
			sendError("unsupported message type")
		}
	}

	close(send)
	<-writerDone
}

func headerOrQuery(r *http.Request, header, param string) string {
	if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
		return v
	}
	return strings.TrimSpace(r.URL.Query().Get(param))
}
