package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/toolgate/core"
	"github.com/hupe1980/toolgate/store"
)

// ---- wire types ----

type attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Base64   string `json:"base64"`
}

type chatRequest struct {
	Message     string       `json:"message"`
	Attachments []attachment `json:"attachments"`
	SessionID   int64        `json:"sessionId"`
}

type approveRequest struct {
	Approved    bool                  `json:"approved"`
	ToolResults []core.FrontendResult `json:"toolResults"`
	SessionID   int64                 `json:"sessionId"`
}

type toolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type toolExecutionResult struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result"`
	Source string         `json:"source"`
}

// chatResult mirrors core.TurnOutcome in the client's format: type is
// "reply" or "tool_calls" and reply is always present on replies.
type chatResult struct {
	Type        string                `json:"type"`
	Calls       []toolCall            `json:"calls,omitempty"`
	Reply       *string               `json:"reply,omitempty"`
	ToolResults []toolExecutionResult `json:"toolResults,omitempty"`
}

type createSessionRequest struct {
	RepoID *int64 `json:"repoId"`
	Title  string `json:"title"`
}

type messageView struct {
	ID        int64           `json:"id"`
	SessionID int64           `json:"sessionId"`
	Role      core.Role       `json:"role"`
	Parts     json.RawMessage `json:"parts"`
	CreatedAt time.Time       `json:"createdAt"`
}

type repoDetail struct {
	store.Repo
	Events []store.Event `json:"events"`
}

func toChatResult(out *core.TurnOutcome) chatResult {
	res := chatResult{Type: string(out.Kind())}

	if out.Kind() == core.OutcomeToolCalls {
		res.Calls = make([]toolCall, 0, len(out.PendingCalls))
		for _, c := range out.PendingCalls {
			args := c.Args
			if args == nil {
				args = map[string]any{}
			}

			res.Calls = append(res.Calls, toolCall{ID: c.ID, Name: c.Name, Args: args})
		}

		if out.Reply != "" {
			reply := out.Reply
			res.Reply = &reply
		}
	} else {
		reply := out.Reply
		res.Reply = &reply
	}

	for _, rec := range out.Executions {
		res.ToolResults = append(res.ToolResults, toolExecutionResult{
			Name:   rec.Name,
			Args:   rec.Args,
			Result: rec.Result,
			Source: string(rec.Source),
		})
	}

	return res
}

// ---- sessions ----

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !s.decode(w, r, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "General Chat"
		if req.RepoID != nil {
			title = "New Chat"
		}
	}

	sess, err := s.store.CreateSession(r.Context(), req.RepoID, title)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var filter store.SessionFilter

	if values, ok := r.URL.Query()["repoId"]; ok {
		if values[0] == "" {
			filter.GlobalOnly = true
		} else {
			id, err := strconv.ParseInt(values[0], 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid repoId")
				return
			}

			filter.RepoID = &id
		}
	}

	sessions, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	views := make([]messageView, 0, len(msgs))

	for _, m := range msgs {
		parts, err := core.MarshalParts(m.Parts)
		if err != nil {
			s.fail(w, err)
			return
		}

		views = append(views, messageView{
			ID:        m.ID,
			SessionID: m.SessionID,
			Role:      m.Role,
			Parts:     parts,
			CreatedAt: m.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRenameSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := s.store.RenameSession(r.Context(), id, req.Title); err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "title": req.Title})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.engine.DeleteSession(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ---- chat ----

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}

	parts := make([]core.Part, 0, len(req.Attachments)+1)
	if req.Message != "" {
		parts = append(parts, core.TextPart{Text: req.Message})
	}

	for i, a := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Base64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("attachment %d: invalid base64", i))
			return
		}

		if a.MimeType == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("attachment %d: mimeType is required", i))
			return
		}

		parts = append(parts, core.BlobPart{MIMEType: a.MimeType, Data: data})
	}

	out, err := s.engine.StartTurn(r.Context(), req.SessionID, parts)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatResult(out))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.engine.ResolvePendingBatch(r.Context(), req.SessionID, req.Approved, req.ToolResults)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChatResult(out))
}

// ---- catalog ----

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.opts.Catalog.ListRepos(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	repo, err := s.opts.Catalog.CreateRepo(r.Context(), req.Name)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, repo)
}

func (s *Server) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	repo, err := s.opts.Catalog.GetRepo(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	events, err := s.opts.Catalog.ListEvents(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, repoDetail{Repo: *repo, Events: events})
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := s.opts.Catalog.ListLabels(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, labels)
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	filter := store.AssetFilter{GlobalOnly: true}

	if v := r.URL.Query().Get("repoId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid repoId")
			return
		}

		filter = store.AssetFilter{RepoID: &id}
	}

	assets, err := s.opts.Catalog.ListAssets(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assets)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	asset, err := s.opts.Catalog.GetAsset(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, asset)
}

// ---- helpers ----

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())

		return false
	}

	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}

	return id, true
}

// fail maps the error taxonomy to a status code.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var unresolved *core.UnresolvedDelegateError

	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNoPendingBatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unresolved):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error(), "unresolved": unresolved.Names})
	case errors.Is(err, core.ErrInvalidArguments):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrUpstream):
		s.logger.Warn("api.upstream_error", "error", err.Error())
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("api.internal_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
