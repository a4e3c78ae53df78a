package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"nmrdeposit/internal/star/document"
)

const (
	watchWriteWait = 10 * time.Second
	watchPongWait  = 60 * time.Second
	watchPingEvery = (watchPongWait * 9) / 10
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchInbound struct {
	Type     string          `json:"type"`
	Mutation json.RawMessage `json:"mutation,omitempty"`
}

type watchOutbound struct {
	Type    string           `json:"type"`
	Status  *document.Status `json:"status,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Watch pushes the entry status after every change and accepts mutations
// on the same socket.
// GET /v1/entries/{id}/watch
func (h *EntryHandler) Watch(w http.ResponseWriter, r *http.Request) {
	entryID := strings.TrimSpace(chi.URLParam(r, "id"))
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, err := h.svc.Subscribe(ctx, entryID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(watchPongWait)); err != nil {
		log.Printf("handler: watch set read deadline: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})

	writeCh := make(chan watchOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(watchPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-updates:
				if !ok {
					return
				}
				pushWatch(writeCh, watchOutbound{Type: "status", Status: &st})
			}
		}
	}()

	for {
		var in watchInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushWatch(writeCh, watchOutbound{Type: "pong"})
		case "mutation":
			m, err := document.DecodeMutation(in.Mutation)
			if err != nil {
				pushWatch(writeCh, watchOutbound{Type: "error", Code: "INVALID_MUTATION", Message: err.Error()})
				continue
			}
			// The resulting status arrives through the subscription.
			if _, err := h.svc.Apply(ctx, entryID, m); err != nil {
				_, code := errorStatus(err)
				pushWatch(writeCh, watchOutbound{Type: "error", Code: code, Message: err.Error()})
			}
		case "":
			pushWatch(writeCh, watchOutbound{Type: "error", Code: "INVALID_ARGUMENT", Message: "type is required"})
		default:
			pushWatch(writeCh, watchOutbound{Type: "error", Code: "INVALID_ARGUMENT", Message: "unsupported type: " + in.Type})
		}
	}
}

// pushWatch never blocks; when the buffer is full the oldest message is
// dropped.
func pushWatch(writeCh chan watchOutbound, out watchOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
