package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"polymer-learn-service/internal/app"
	"polymer-learn-service/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type indexPayload struct {
	QuestionIndex int `json:"questionIndex"`
	OptionIndex   int `json:"optionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// ServeWS upgrades an authenticated request and plays one lesson over the
// socket. Closing the socket exits the session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	lessonID := r.URL.Query().Get("lessonId")
	if lessonID == "" {
		writeError(w, h.log, domain.NewValidationError("lessonId", "is required"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.learning.StartLesson(ctx, lessonID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	sessionID := session.ID
	defer func() {
		// The request context is done once the client goes away.
		if err := h.learning.Exit(context.WithoutCancel(ctx), sessionID); err != nil {
			h.log.Warn("exit session on close", zap.String("session", sessionID), zap.Error(err))
		}
	}()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: newSessionView(session)}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range h.dispatch(ctx, sessionID, inbound) {
			select {
			case send <- msg:
			case <-writerDone:
			}
		}
	}

	close(send)
	<-writerDone
}

// dispatch runs one client command and returns the messages to send back.
func (h *Handler) dispatch(ctx context.Context, sessionID string, in inboundMessage) []outboundMessage[any] {
	var p indexPayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return []outboundMessage[any]{errorMessage(domain.NewValidationError("payload", "must be valid JSON"))}
		}
	}

	var (
		session app.Session
		err     error
	)
	switch in.Type {
	case "select":
		session, err = h.learning.SelectAnswer(ctx, sessionID, p.QuestionIndex, p.OptionIndex)
	case "check":
		var result app.CheckResult
		if result, err = h.learning.CheckAnswer(ctx, sessionID); err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		session, err = h.learning.GetSession(ctx, sessionID)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "checked", Payload: checkView{CheckResult: result, Session: newSessionView(session)}}}
	case "advance":
		session, _, err = h.learning.Advance(ctx, sessionID)
	case "goto":
		session, err = h.learning.GoTo(ctx, sessionID, p.QuestionIndex)
	case "retry":
		session, err = h.learning.Retry(ctx, sessionID)
	case "finish":
		completion, err := h.learning.FinishSession(ctx, sessionID)
		if err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "completed", Payload: completion}}
	case "discard":
		if err := h.learning.Discard(ctx, sessionID); err != nil {
			return []outboundMessage[any]{errorMessage(err)}
		}
		return []outboundMessage[any]{{Type: "discarded", Payload: map[string]string{"sessionId": sessionID}}}
	default:
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: "unsupported message type", Status: http.StatusBadRequest}}}
	}
	if err != nil {
		return []outboundMessage[any]{errorMessage(err)}
	}
	return []outboundMessage[any]{{Type: "session", Payload: newSessionView(session)}}
}

func errorMessage(err error) outboundMessage[any] {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg, Status: status}}
}
