package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/intent"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/storage"
	"github.com/hyperjump/campusbot/internal/telemetry"
	"github.com/hyperjump/campusbot/pkg/utils"
)

const conversationTitleLen = 60

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id,omitempty"`
	Content        string          `json:"content"`
	Confidence     float64         `json:"confidence"`
	Source         string          `json:"source"`
	Intent         models.Category `json:"intent"`
	KnowledgeID    string          `json:"knowledge_id,omitempty"`
	LatencyMs      int64           `json:"latency_ms"`
	Error          bool            `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		s.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	var state models.ConversationState
	if req.ConversationID == "" {
		conv, err := s.deps.Recorder.StartConversation(ctx, req.UserID, utils.Truncate(req.Message, conversationTitleLen))
		if err != nil {
			s.respondFailure(w, "chat: start conversation failed", err)
			return
		}
		state.ConversationID = conv.ID
	} else {
		loaded, err := s.deps.Recorder.State(ctx, req.ConversationID)
		if err != nil {
			s.respondFailure(w, "chat: load conversation failed", err)
			return
		}
		state = loaded
	}
	s.logger.Debug("chat request",
		zap.String("conversation_id", state.ConversationID),
		zap.String("message", utils.Truncate(req.Message, 80)),
	)

	res, err := s.deps.Resolver.Resolve(ctx, state, req.Message)
	if err != nil {
		if !errs.IsKind(err, errs.KindUpstreamGeneration) {
			s.respondFailure(w, "chat: resolve failed", err)
			return
		}
		label := intent.Detect(req.Message)
		resp := chatResponse{
			ConversationID: state.ConversationID,
			Content:        s.assistant.FallbackMessage,
			Source:         telemetry.SourceFallback,
			Intent:         label,
			Error:          true,
		}
		msg, rerr := s.deps.Recorder.RecordFailure(ctx, state.ConversationID, req.Message, label, s.assistant.FallbackMessage, err)
		if rerr != nil {
			s.logger.Error("chat: record failed turn", zap.Error(rerr))
		} else {
			resp.MessageID = msg.ID
		}
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	resp := chatResponse{
		ConversationID: state.ConversationID,
		Content:        res.Content,
		Confidence:     res.Confidence,
		Source:         res.Source,
		Intent:         res.Intent,
		KnowledgeID:    res.KnowledgeID,
		LatencyMs:      res.Latency.Milliseconds(),
	}
	if n := len(res.State.Turns); n >= 2 {
		_, assistant, err := s.deps.Recorder.RecordTurn(ctx, res.State.Turns[n-2], res.State.Turns[n-1])
		if err != nil {
			s.logger.Error("chat: record turn failed", zap.Error(err))
		} else {
			resp.MessageID = assistant.ID
		}
	}
	if s.deps.Runner != nil {
		s.deps.Runner.Dispatch(res.Tasks...)
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.deps.Recorder.Conversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "get conversation failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.deps.Recorder.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, "list messages failed", err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb models.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fb.ID = ""
	id, err := s.deps.Recorder.RecordFeedback(r.Context(), &fb)
	if err != nil && id == "" {
		s.respondFailure(w, "feedback failed", err)
		return
	}
	if err != nil {
		s.logger.Warn("feedback stored but not fully applied", zap.String("id", id), zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "processed": fb.Processed})
}

// statusFor maps an error to an HTTP status by kind.
func statusFor(err error) int {
	if storage.IsNotFound(err) {
		return http.StatusNotFound
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUpstreamStore:
		return http.StatusServiceUnavailable
	case errs.KindUpstreamGeneration:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	message := err.Error()
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" && status < http.StatusInternalServerError {
		message = e.Message
	}
	if status == http.StatusNotFound {
		message = "not found"
	}
	s.respondJSON(w, status, map[string]string{"error": message, "kind": string(errs.KindOf(err))})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
