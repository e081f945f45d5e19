package stubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
)

// blindLabels names each blind slot in canned responses.
var blindLabels = map[string]string{
	model.BlindAlpha:  "Model Alpha",
	model.BlindBeta:   "Model Beta",
	model.BlindCustom: "Custom Model",
}

// fallbackModels resolve a blind label when no mapping exists.
var fallbackModels = map[string]model.ModelMapping{
	model.BlindAlpha: {Provider: "OpenAI", Model: "gpt-4o"},
	model.BlindBeta:  {Provider: "Anthropic", Model: "claude-3-opus"},
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON body")
	}
	return model.Validate(v)
}

// statusOf maps store errors to HTTP statuses.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "stub request failed", logger.String("path", r.URL.Path), logger.Error(err))
	}
	writeError(w, status, code, err)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u model.User) {
	token, err := s.signer.Sign(u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	u.Token = token
	writeJSON(w, status, u)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decode(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.bcryptCost)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	role := creds.Role
	if role == "" {
		role = model.RoleParticipant
	}
	u, err := s.store.addAccount(creds.Email, role, hash)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logger.Info(r.Context(), "account created", logger.String("email", u.Email), logger.String("role", string(u.Role)))
	s.respondWithToken(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := decode(r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	u, hash, ok := s.store.account(creds.Email)
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("invalid credentials"))
		return
	}
	s.respondWithToken(w, r, http.StatusOK, u)
}

func (s *Server) handleListExercises(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Exercises())
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var in model.NewExercise
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.store.AddExercise(in))
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteExercise(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListMappings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Mappings())
}

func (s *Server) handleCreateMapping(w http.ResponseWriter, r *http.Request) {
	var m model.ModelMapping
	if err := decode(r, &m); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.store.AddMapping(m))
}

func (s *Server) handleDeleteMapping(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteMapping(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// blinded hides the resolved provider and model from non-admin callers.
func blinded(it model.Interaction, c *Claims) model.Interaction {
	if c == nil || c.Role != model.RoleAdmin {
		it.Provider = ""
		it.Model = ""
	}
	return it
}

// handleGenerate resolves the blind label to a provider and model and
// records a canned interaction. Only admins see the resolution, here and
// in the exports.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	c, _ := ClaimsFromContext(r.Context())

	var provider, modelName string
	switch req.Blind {
	case model.BlindCustom:
		if strings.TrimSpace(req.CustomEndpoint) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("custom_endpoint is required for the custom model"))
			return
		}
		provider, modelName = "Custom", "byo"
	default:
		m, ok := s.store.mappingFor(req.Blind)
		if !ok {
			m = fallbackModels[req.Blind]
		}
		provider, modelName = m.Provider, m.Model
	}

	it := s.store.AddInteraction(model.Interaction{
		UserID:     c.UID,
		UserEmail:  c.Email,
		ExerciseID: req.ExerciseID,
		Blind:      req.Blind,
		Provider:   provider,
		Model:      modelName,
		Prompt:     req.Prompt,
		Response:   cannedResponse(req.Blind),
	})
	writeJSON(w, http.StatusOK, blinded(it, c))
}

func cannedResponse(blind string) string {
	return fmt.Sprintf("Demo response from %s:\n\n"+
		"• Summary: This is a simulated output for preview.\n"+
		"• Note: Connect real providers via backend for production.\n"+
		"• Tip: Use the flag form below to report issues.", blindLabels[blind])
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list := s.store.Interactions(model.InteractionFilter{
		UserEmail:  q.Get("user_email"),
		TeamID:     q.Get("team_id"),
		ExerciseID: q.Get("exercise_id"),
	})
	c, _ := ClaimsFromContext(r.Context())
	for i := range list {
		list[i] = blinded(list[i], c)
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateFlag(w http.ResponseWriter, r *http.Request) {
	var nf model.NewFlag
	if err := decode(r, &nf); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if nf.UserEmail == "" {
		c, _ := ClaimsFromContext(r.Context())
		nf.UserEmail = c.Email
	}
	f, err := s.store.AddFlag(nf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleListFlags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Flags())
}

func (s *Server) handleResolveFlag(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.ResolveFlag(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Analytics())
}

type teamRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusCreated, s.store.AddTeam(strings.TrimSpace(req.Name)))
}

func (s *Server) handleJoinTeam(w http.ResponseWriter, r *http.Request) {
	var req model.JoinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	c, _ := ClaimsFromContext(r.Context())
	if !strings.EqualFold(req.UserEmail, c.Email) && c.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", errors.New("cannot join a team on behalf of another user"))
		return
	}
	m, err := s.store.Join(req.TeamID, req.UserEmail)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
