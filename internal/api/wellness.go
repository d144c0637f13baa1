package api

import (
	"net/http"
	"strings"

	"carehub/internal/common/errors"
	"carehub/internal/common/validation"
	"carehub/internal/domain/wellness"
	rws "carehub/internal/workers/wellness/record-wellness-score"
)

// wellnessRequest is a flat check-in. A check-in carries all four metrics
// or none of them.
type wellnessRequest struct {
	CareGroupID string `json:"careGroupId"`
	Mood        *int   `json:"mood"`
	Energy      *int   `json:"energy"`
	Sleep       *int   `json:"sleep"`
	Activity    *int   `json:"activity"`
	Notes       string `json:"notes"`
}

// metrics returns nil when no metric is present and an error naming the
// missing fields when only some are.
func (req *wellnessRequest) metrics() (*wellness.Metrics, error) {
	fields := []struct {
		name string
		val  *int
	}{
		{"mood", req.Mood},
		{"energy", req.Energy},
		{"sleep", req.Sleep},
		{"activity", req.Activity},
	}
	var missing []string
	for _, f := range fields {
		if f.val == nil {
			missing = append(missing, f.name)
		}
	}
	switch len(missing) {
	case len(fields):
		return nil, nil
	case 0:
		return &wellness.Metrics{
			Mood:     *req.Mood,
			Energy:   *req.Energy,
			Sleep:    *req.Sleep,
			Activity: *req.Activity,
		}, nil
	default:
		return nil, errors.NewInvalidInputError("partial check-in, missing " + strings.Join(missing, ", "))
	}
}

func (s *Server) recordWellness(w http.ResponseWriter, r *http.Request) {
	var req wellnessRequest
	if _, ok := s.decode(w, r, validation.SchemaWellness, &req); !ok {
		return
	}
	m, err := req.metrics()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.CareGroupID != "" && !s.requireMember(w, r, req.CareGroupID) {
		return
	}

	out, err := s.Wellness.Execute(r.Context(), &rws.Input{
		UserID:      UserID(r.Context()),
		CareGroupID: req.CareGroupID,
		Metrics:     m,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// scoreWellness computes a score without storing anything.
func (s *Server) scoreWellness(w http.ResponseWriter, r *http.Request) {
	var req wellnessRequest
	if _, ok := s.decode(w, r, validation.SchemaWellness, &req); !ok {
		return
	}

	m, err := req.metrics()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if m != nil {
		if err := wellness.Validate(*m); err != nil {
			s.writeError(w, r, errors.NewInvalidInputError(err.Error()))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"wellnessScore": wellness.Score(m),
		"metrics":       m,
	})
}
