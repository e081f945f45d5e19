package stubapi

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"

	"github.com/okian/flames/internal/domain/model"
)

type account struct {
	user model.User
	hash []byte
}

// Store is the in-memory state of the stub backend.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*account
	exercises    []model.Exercise
	mappings     []model.ModelMapping
	interactions []model.Interaction
	flags        []model.Flag
	teams        map[string]model.Team
	memberships  map[string]string

	newID func() string
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:    make(map[string]*account),
		teams:       make(map[string]model.Team),
		memberships: make(map[string]string),
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) addAccount(email string, role model.Role, hash []byte) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := emailKey(email)
	if _, ok := s.accounts[key]; ok {
		return model.User{}, errors.Mark(errors.Newf("email %s already registered", email), ErrConflict)
	}
	u := model.User{ID: s.newID(), Email: strings.TrimSpace(email), Role: role}
	s.accounts[key] = &account{user: u, hash: hash}
	return u, nil
}

func (s *Store) account(email string) (model.User, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[emailKey(email)]
	if !ok {
		return model.User{}, nil, false
	}
	u := a.user
	if team, ok := s.memberships[emailKey(email)]; ok {
		u.TeamID = null.StringFrom(team)
	}
	return u, a.hash, true
}

// Exercises returns every exercise, newest first.
func (s *Store) Exercises() []model.Exercise {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Exercise{}, s.exercises...)
}

// AddExercise stores a new exercise.
func (s *Store) AddExercise(in model.NewExercise) model.Exercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex := model.Exercise{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		EndDate:     null.NewString(in.EndDate, in.EndDate != ""),
		Guidelines:  append([]string{}, in.Guidelines...),
	}
	s.exercises = append([]model.Exercise{ex}, s.exercises...)
	return ex
}

// DeleteExercise removes id.
func (s *Store) DeleteExercise(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ex := range s.exercises {
		if ex.ID == id {
			s.exercises = append(s.exercises[:i], s.exercises[i+1:]...)
			return nil
		}
	}
	return errors.Mark(errors.Newf("exercise %s not found", id), ErrNotFound)
}

// Mappings returns every model mapping in creation order.
func (s *Store) Mappings() []model.ModelMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ModelMapping{}, s.mappings...)
}

// AddMapping stores a new mapping.
func (s *Store) AddMapping(m model.ModelMapping) model.ModelMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.newID()
	s.mappings = append(s.mappings, m)
	return m
}

// DeleteMapping removes id.
func (s *Store) DeleteMapping(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.mappings {
		if m.ID == id {
			s.mappings = append(s.mappings[:i], s.mappings[i+1:]...)
			return nil
		}
	}
	return errors.Mark(errors.Newf("model mapping %s not found", id), ErrNotFound)
}

// mappingFor returns the first mapping of blind.
func (s *Store) mappingFor(blind string) (model.ModelMapping, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mappings {
		if m.Blind == blind {
			return m, true
		}
	}
	return model.ModelMapping{}, false
}

// AddInteraction records a generation, stamping id, team and time.
func (s *Store) AddInteraction(it model.Interaction) model.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.ID = s.newID()
	it.TeamID = s.memberships[emailKey(it.UserEmail)]
	it.TS = s.now().UTC().Format(time.RFC3339)
	s.interactions = append(s.interactions, it)
	return it
}

// Interactions returns the interactions matching every non-empty filter field.
func (s *Store) Interactions(f model.InteractionFilter) []model.Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Interaction{}
	for _, it := range s.interactions {
		if f.UserEmail != "" && !strings.EqualFold(it.UserEmail, f.UserEmail) {
			continue
		}
		if f.TeamID != "" && it.TeamID != f.TeamID {
			continue
		}
		if f.ExerciseID != "" && it.ExerciseID != f.ExerciseID {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) hasInteraction(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.interactions {
		if it.ID == id {
			return true
		}
	}
	return false
}

// AddFlag stores an open flag.
func (s *Store) AddFlag(nf model.NewFlag) (model.Flag, error) {
	if !s.hasInteraction(nf.InteractionID) {
		return model.Flag{}, errors.Mark(errors.Newf("interaction %s not found", nf.InteractionID), ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f := model.Flag{
		ID:            s.newID(),
		InteractionID: nf.InteractionID,
		UserEmail:     nf.UserEmail,
		Category:      nf.Category,
		Severity:      nf.Severity,
		Comments:      nf.Comments,
		Status:        model.FlagOpen,
		TS:            s.now().UTC().Format(time.RFC3339),
	}
	s.flags = append([]model.Flag{f}, s.flags...)
	return f, nil
}

// Flags returns every flag, newest first.
func (s *Store) Flags() []model.Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Flag{}, s.flags...)
}

// ResolveFlag moves an open flag to resolved.
func (s *Store) ResolveFlag(id string) (model.Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flags {
		if s.flags[i].ID != id {
			continue
		}
		if s.flags[i].Status == model.FlagResolved {
			return s.flags[i], errors.Mark(errors.Newf("flag %s already resolved", id), ErrConflict)
		}
		s.flags[i].Status = model.FlagResolved
		return s.flags[i], nil
	}
	return model.Flag{}, errors.Mark(errors.Newf("flag %s not found", id), ErrNotFound)
}

// Analytics aggregates the counters shown on the admin dashboard.
func (s *Store) Analytics() model.Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := model.Analytics{Users: len(s.accounts), Interactions: len(s.interactions)}
	for _, f := range s.flags {
		if f.Status == model.FlagOpen {
			a.OpenFlags++
		}
	}
	return a
}

// AddTeam creates a team.
func (s *Store) AddTeam(name string) model.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := model.Team{ID: s.newID(), Name: name}
	s.teams[t.ID] = t
	return t
}

// Join records email as a member of teamID.
func (s *Store) Join(teamID, email string) (model.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[teamID]; !ok {
		return model.Membership{}, errors.Mark(errors.Newf("team %s not found", teamID), ErrNotFound)
	}
	s.memberships[emailKey(email)] = teamID
	return model.Membership{TeamID: teamID, UserEmail: email}, nil
}
