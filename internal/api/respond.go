package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"carehub/internal/common/errors"
	"carehub/internal/common/validation"
	"carehub/internal/store"
)

type errorBody struct {
	Code    errors.ErrorCode             `json:"code"`
	Message string                       `json:"message"`
	Details string                       `json:"details,omitempty"`
	Fields  []validation.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its status code. Server-side failures are logged
// and their details withheld from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := errors.Normalize(err)
	status := errors.HTTPStatus(stdErr.Code)

	body := errorBody{Code: stdErr.Code, Message: stdErr.Message, Details: stdErr.Details}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"method":    r.Method,
			"path":      r.URL.Path,
			"status":    status,
			"errorCode": string(stdErr.Code),
			"details":   stdErr.Details,
		})
		body.Details = ""
	}
	writeJSON(w, status, body)
}

func (s *Server) writeValidation(w http.ResponseWriter, result *validation.ValidationResult) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Code:    errors.ErrCodeInvalidInput,
		Message: "Request validation failed",
		Fields:  result.Errors,
	})
}

// decode reads the body, checks it against schema when one is named and
// unmarshals it into dst. It writes the error response itself and returns
// the raw body on success.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst interface{}) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, r, errors.NewInvalidInputError("request body too large"))
			return nil, false
		}
		s.writeError(w, r, errors.NewInvalidInputError("unreadable request body"))
		return nil, false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	if schema != "" && s.Schemas != nil {
		result, err := s.Schemas.ValidateBytes(schema, body)
		if err != nil {
			s.writeError(w, r, errors.NewInvalidInputError("malformed JSON body"))
			return nil, false
		}
		if !result.Valid {
			s.writeValidation(w, result)
			return nil, false
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		s.writeError(w, r, errors.NewInvalidInputError("malformed JSON body"))
		return nil, false
	}
	return body, true
}

// requireMember answers 403 unless the caller belongs to the care group.
func (s *Server) requireMember(w http.ResponseWriter, r *http.Request, groupID string) bool {
	ok, err := s.Store.CareGroups.IsMember(r.Context(), groupID, UserID(r.Context()))
	if err != nil {
		s.writeError(w, r, errors.NewQueryExecutionFailedError("care_group_membership", err))
		return false
	}
	if !ok {
		s.writeError(w, r, errors.NewForbiddenError("not a member of this care group"))
		return false
	}
	return true
}

// storeError translates repository sentinels into API errors.
func storeError(err error, resource, id string) error {
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		return errors.NewResourceNotFoundError(resource, id)
	case stderrors.Is(err, store.ErrConflict):
		return errors.NewDuplicateRecordError(resource, id)
	case stderrors.Is(err, store.ErrInvalidRole):
		return errors.NewInvalidInputError("role must be one of patient, family, caregiver, coordinator")
	default:
		return errors.NewQueryExecutionFailedError(resource, err)
	}
}
