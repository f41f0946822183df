package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleChatWebSocket streams a document's thread to the client and turns
// inbound frames into prompts.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	updates := s.stores.Threads.Subscribe()

	// Send the current thread state.
	sentIDs := make(map[string]bool)
	if err := s.syncThread(ws, doc.ThreadID, sentIDs); err != nil {
		slog.Error("Failed initial thread sync", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: pushes new messages to the client.
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case threadID := <-updates:
				if threadID == doc.ThreadID {
					if err := s.syncThread(ws, doc.ThreadID, sentIDs); err != nil {
						slog.Error("Failed thread sync", "error", err)
						return
					}
				}
			case <-ticker.C:
				// Keepalive
			}
		}
	}()

	// Reader loop: inbound frames become prompts.
	for {
		var msg struct {
			Content string `json:"content"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			slog.Error("WebSocket read error", "error", err)
			break
		}

		if msg.Content != "" {
			if _, err := s.runner.Send(context.Background(), uid, doc.ID, msg.Content, nil); err != nil {
				slog.Error("Failed to accept prompt", "documentID", doc.ID, "error", err)
			}
		}
	}

	close(done)
	wg.Wait()
}

func (s *Server) syncThread(ws *websocket.Conn, threadID string, sentIDs map[string]bool) error {
	msgs, err := s.stores.Threads.ListMessages(context.Background(), threadID, 0)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		if !sentIDs[m.ID] {
			if err := ws.WriteJSON(m); err != nil {
				return err
			}
			sentIDs[m.ID] = true
		}
	}
	return nil
}
