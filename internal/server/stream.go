package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-mastery/internal/mastery"
)

// streamReply is one server frame. Exactly one of Result and Error is set.
type streamReply struct {
	Result *evidenceResponse `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
	Status int               `json:"status,omitempty"`
}

// handleStream accepts evidence frames over a WebSocket and answers each one
// with the updated snapshot or an error. A bad frame does not close the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("learner")
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "learner_id", learnerID, "error", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	ctx := r.Context()
	slog.Debug("evidence stream opened", "learner_id", learnerID)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Debug("evidence stream closed", "learner_id", learnerID)
			default:
				slog.Debug("evidence stream read failed", "learner_id", learnerID, "error", err)
			}
			return
		}

		reply := s.streamEvidence(r, learnerID, typ, data)
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			slog.Debug("evidence stream write failed", "learner_id", learnerID, "error", err)
			return
		}
	}
}

func (s *Server) streamEvidence(r *http.Request, learnerID string, typ websocket.MessageType, data []byte) streamReply {
	if typ != websocket.MessageText {
		return streamReply{Error: "expected a JSON text frame", Status: http.StatusBadRequest}
	}
	body, err := decodeEvidence(bytes.NewReader(data))
	if err != nil {
		return streamReply{Error: err.Error(), Status: http.StatusBadRequest}
	}

	resp, err := s.record(r, learnerID, body)
	if err != nil {
		if errors.Is(err, mastery.ErrStoreUnavailable) {
			slog.Error("stream evidence failed", "learner_id", learnerID, "error", err)
		}
		return streamReply{Error: err.Error(), Status: statusFor(err)}
	}
	return streamReply{Result: &resp}
}
