// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/commentflow/internal/pipeline"
	"github.com/user/commentflow/internal/types"
)

// Server is the HTTP surface: the Meta webhook endpoints, a direct ingest
// endpoint, and a small debug API over the stores.
type Server struct {
	pipe        *pipeline.Pipeline
	comments    types.CommentStore
	tasks       types.TaskQueue
	sessions    types.SessionStore
	outcomes    types.OutcomeRecorder
	verifyToken string
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewServer creates the webhook server. verifyToken is the shared secret
// echoed back during the Meta subscription handshake.
func NewServer(pipe *pipeline.Pipeline, comments types.CommentStore, tasks types.TaskQueue, sessions types.SessionStore, outcomes types.OutcomeRecorder, verifyToken string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipe:        pipe,
		comments:    comments,
		tasks:       tasks,
		sessions:    sessions,
		outcomes:    outcomes,
		verifyToken: verifyToken,
		logger:      logger,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /webhook", s.handleVerify)
	s.mux.HandleFunc("POST /webhook", s.handleWebhook)
	s.mux.HandleFunc("POST /ingest", s.handleIngest)
	s.mux.HandleFunc("GET /api/comments", s.handleListComments)
	s.mux.HandleFunc("GET /api/comments/{id}", s.handleGetComment)
	s.mux.HandleFunc("POST /api/comments/{id}/cancel", s.handleCancelComment)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("POST /api/tasks/{id}/retry", s.handleRetryTask)
	s.mux.HandleFunc("POST /api/tasks/{id}/cancel", s.handleCancelTask)
	s.mux.HandleFunc("GET /api/sessions/{key}", s.handleGetSession)
	s.mux.HandleFunc("GET /api/outcomes", s.handleListOutcomes)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVerify answers the Meta subscription handshake: echo hub.challenge
// when the verify token matches.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || q.Get("hub.verify_token") != s.verifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(q.Get("hub.challenge")))
}

// metaPayload is the envelope Meta delivers comment changes in.
type metaPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Field string      `json:"field"`
			Value commentData `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type commentData struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
	Media struct {
		ID string `json:"id"`
	} `json:"media"`
	ParentID string `json:"parent_id"`
}

// handleWebhook unpacks a Meta delivery and runs each comment change
// through ingest. Always answers 200 once the payload parses: Meta retries
// non-200 responses, and the ledger already absorbs redeliveries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload metaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "comments" {
				continue
			}
			event := &types.InboundEvent{
				EventID:   types.EventID("ig:" + change.Value.ID),
				MediaID:   types.MediaID(change.Value.Media.ID),
				CommentID: types.CommentID(change.Value.ID),
				ParentID:  types.CommentID(change.Value.ParentID),
				AuthorID:  change.Value.From.ID,
				Username:  change.Value.From.Username,
				Text:      change.Value.Text,
				Timestamp: entry.Time,
			}
			result, err := s.pipe.Ingest(r.Context(), event)
			if err != nil {
				s.logger.Error("webhook ingest failed",
					"comment_id", event.CommentID, "error", err)
				continue
			}
			if result.Accepted {
				accepted++
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]int{"accepted": accepted})
}

// handleIngest accepts a raw inbound event directly, bypassing the Meta
// envelope. Used by the simulate command and tests.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var event types.InboundEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	result, err := s.pipe.Ingest(r.Context(), &event)
	if err != nil {
		var validation *types.ValidationError
		if errors.As(err, &validation) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Reason})
			return
		}
		s.logger.Error("ingest failed", "comment_id", event.CommentID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.comments.List(r.Context())
	if err != nil {
		s.logger.Error("list comments failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := comments[:0]
		for _, c := range comments {
			if c.Status == types.CommentStatus(status) {
				filtered = append(filtered, c)
			}
		}
		comments = filtered
	}
	if comments == nil {
		comments = []*types.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	comment, err := s.comments.Get(r.Context(), types.CommentID(r.PathValue("id")))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "comment not found"})
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) handleCancelComment(w http.ResponseWriter, r *http.Request) {
	id := types.CommentID(r.PathValue("id"))
	if err := s.pipe.CancelComment(r.Context(), id); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := types.TaskStatus(r.URL.Query().Get("status"))
	tasks, err := s.tasks.ListByStatus(r.Context(), status)
	if err != nil {
		s.logger.Error("list tasks failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n >= 0 && n < len(tasks) {
			tasks = tasks[len(tasks)-n:]
		}
	}
	if tasks == nil {
		tasks = []*types.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	id := types.TaskID(r.PathValue("id"))
	if err := s.pipe.RetryDeadTask(r.Context(), id); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := types.TaskID(r.PathValue("id"))
	if err := s.tasks.Cancel(r.Context(), id); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := types.ConversationKey(r.PathValue("key"))
	turns, err := s.sessions.Tail(r.Context(), key, 0)
	if err != nil {
		s.logger.Error("read session failed", "key", key, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if turns == nil {
		turns = []*types.Turn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.outcomes.List(r.Context())
	if err != nil {
		s.logger.Error("list outcomes failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if outcomes == nil {
		outcomes = []*types.Outcome{}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
