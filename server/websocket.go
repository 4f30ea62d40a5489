package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/yatra/pkg/trip"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Message is sent to the browser: "status" while working, then "response"
// or "error".
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// clientMessage asks for a plan over the websocket.
type clientMessage struct {
	Type string      `json:"type"`
	Data planRequest `json:"data"`
}

// itineraryData accompanies a "response" message.
type itineraryData struct {
	Destination string  `json:"destination"`
	Days        int     `json:"days"`
	Budget      int     `json:"budget"`
	HTML        string  `json:"html"`
	MapsURL     string  `json:"mapsUrl"`
	Seconds     float64 `json:"seconds"`
	Download    string  `json:"download"`
	Filename    string  `json:"filename"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	v, cookie, err := s.sessions.obtain(r)
	if err != nil {
		s.log.Error("failed to start session", zap.Error(err))
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	header := http.Header{}
	if cookie != nil {
		header.Add("Set-Cookie", cookie.String())
	}

	conn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("error reading message", zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, "error", "malformed message")
			continue
		}
		if msg.Type != "plan" {
			s.sendMessage(conn, "error", "unknown message type: "+msg.Type)
			continue
		}

		s.plan(r.Context(), conn, v, msg.Data)
	}
}

// plan runs one query synchronously; the connection waits for the answer.
func (s *Server) plan(ctx context.Context, conn *websocket.Conn, v *visitor, req planRequest) {
	query, err := req.query(s.config.Now())
	if err != nil {
		s.sendMessage(conn, "error", inputMessage(err))
		return
	}

	if v.session.Builds() == 0 {
		s.sendMessage(conn, "status", "Setting up the environment...")
	}
	s.sendMessage(conn, "status", "Processing your request...")

	it, err := v.generator.Answer(ctx, query)
	if err != nil {
		s.sendMessage(conn, "error", err.Error())
		return
	}
	v.setLast(it)

	s.send(conn, Message{
		Type:    "response",
		Content: it.Text,
		Data: itineraryData{
			Destination: query.Destination,
			Days:        query.DayCount,
			Budget:      query.Budget,
			HTML:        string(s.markdown(it.Text)),
			MapsURL:     it.MapsURL,
			Seconds:     it.Elapsed.Seconds(),
			Download:    "/download",
			Filename:    trip.DownloadName(query.Destination),
		},
	})
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType string, content string) {
	s.send(conn, Message{Type: msgType, Content: content})
}

func (s *Server) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("error sending message", zap.Error(err))
	}
}
