package stubapi

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/okian/flames/internal/domain/model"
	"github.com/okian/flames/pkg/logger"
)

// csvHeader is the first row of /export/csv.
var csvHeader = []string{"ts", "user", "blind", "provider", "model", "prompt", "response"}

type exportPayload struct {
	Interactions []model.Interaction  `json:"interactions"`
	Flags        []model.Flag         `json:"flags"`
	Exercises    []model.Exercise     `json:"exercises"`
	Models       []model.ModelMapping `json:"models"`
}

func (s *Server) handleExportJSON(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, exportPayload{
		Interactions: s.store.Interactions(model.InteractionFilter{}),
		Flags:        s.store.Flags(),
		Exercises:    s.store.Exercises(),
		Models:       s.store.Mappings(),
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	interactions := s.store.Interactions(model.InteractionFilter{})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="interactions.csv"`)
	w.Header().Set("X-Row-Count", strconv.Itoa(len(interactions)))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, it := range interactions {
		_ = cw.Write([]string{it.TS, it.UserEmail, it.Blind, it.Provider, it.Model, it.Prompt, it.Response})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error(r.Context(), "write csv export", logger.Error(err))
	}
}
