package api

import (
	"net/http"
	"time"

	"carehub/internal/common/errors"
	"carehub/internal/common/validation"
	"carehub/internal/realtime"
	"carehub/internal/store"
	cc "carehub/internal/workers/claims/check-coverage"
	vc "carehub/internal/workers/claims/validate-claim"
)

// getCoverage returns a member's eligibility. Callers may look up their own
// member id, or any member of a care group they belong to via ?careGroupId.
func (s *Server) getCoverage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID := r.PathValue("memberId")

	if memberID != UserID(ctx) {
		groupID := r.URL.Query().Get("careGroupId")
		if groupID == "" {
			s.writeError(w, r, errors.NewForbiddenError("careGroupId is required to view another member's coverage"))
			return
		}
		if !s.requireMember(w, r, groupID) {
			return
		}
		ok, err := s.Store.CareGroups.IsMember(ctx, groupID, memberID)
		if err != nil {
			s.writeError(w, r, storeError(err, "care_group_members", memberID))
			return
		}
		if !ok {
			s.writeError(w, r, errors.NewForbiddenError("member is not in this care group"))
			return
		}
	}

	out, err := s.Coverage.Execute(ctx, &cc.Input{MemberID: memberID})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type claimResponse struct {
	*store.ClaimRecord
	ProcessStarted bool `json:"processStarted"`
}

// submitClaim stores the claim and starts its adjudication process. A claim
// whose process fails to start stays "submitted" and the error is returned.
func (s *Server) submitClaim(w http.ResponseWriter, r *http.Request) {
	var req vc.Input
	if _, ok := s.decode(w, r, validation.SchemaClaim, &req); !ok {
		return
	}
	if !s.requireMember(w, r, req.CareGroupID) {
		return
	}

	serviceDate, err := time.Parse("2006-01-02", req.ServiceDate)
	if err != nil {
		s.writeError(w, r, errors.NewInvalidInputError("serviceDate must be YYYY-MM-DD"))
		return
	}

	ctx := r.Context()
	userID := UserID(ctx)
	claim, err := s.Store.Claims.Insert(ctx, store.ClaimRecord{
		MemberID:    req.MemberID,
		PlanID:      req.PlanID,
		CareGroupID: req.CareGroupID,
		SubmittedBy: userID,
		ServiceCode: req.ServiceCode,
		ServiceDate: serviceDate,
		BilledCents: req.BilledAmountCents,
	})
	if err != nil {
		s.writeError(w, r, errors.NewDatabaseInsertFailedError(err))
		return
	}

	if err := s.Store.Audit.Record(ctx, "claim_submitted", "insurance_claim", claim.ID, map[string]interface{}{
		"submittedBy": userID,
		"billedCents": claim.BilledCents,
	}); err != nil {
		s.logger.Warn("failed to audit claim submission", map[string]interface{}{
			"claimId": claim.ID,
			"error":   err,
		})
	}

	resp := claimResponse{ClaimRecord: claim}
	if s.Process != nil {
		key, err := s.Process.StartProcess(ctx, s.config.ClaimProcessID, map[string]interface{}{
			"claimId":           claim.ID,
			"memberId":          req.MemberID,
			"planId":            req.PlanID,
			"careGroupId":       req.CareGroupID,
			"serviceCode":       req.ServiceCode,
			"serviceDate":       req.ServiceDate,
			"billedAmountCents": req.BilledAmountCents,
			"providerName":      req.ProviderName,
			"submittedBy":       userID,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		claim.ProcessInstanceKey = key
		resp.ProcessStarted = true

		if err := s.Store.Claims.SetProcessInstance(ctx, claim.ID, key); err != nil {
			s.logger.Warn("failed to store process instance key", map[string]interface{}{
				"claimId":            claim.ID,
				"processInstanceKey": key,
				"error":              err,
			})
		}
	}

	s.publish(ctx, realtime.EventClaimSubmitted, req.CareGroupID, map[string]interface{}{
		"claimId": claim.ID,
		"status":  claim.Status,
	})
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getClaim(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claim, err := s.Store.Claims.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, storeError(err, "insurance_claims", id))
		return
	}
	if !s.requireMember(w, r, claim.CareGroupID) {
		return
	}
	writeJSON(w, http.StatusOK, claim)
}
