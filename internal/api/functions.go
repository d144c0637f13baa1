package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"carehub/internal/cache"
	"carehub/internal/common/metrics"
	"carehub/internal/common/validation"
	gi "carehub/internal/workers/ai/generate-image"
	gt "carehub/internal/workers/ai/generate-text"
	ga "carehub/internal/workers/care/geocode-address"
	sf "carehub/internal/workers/care/search-facilities"
	cpi "carehub/internal/workers/marketplace/create-payment-intent"
)

// The function endpoints validate the body, then call the same handler the
// corresponding job worker runs.

func (s *Server) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var in cpi.Input
	if _, ok := s.decode(w, r, validation.SchemaPaymentIntent, &in); !ok {
		return
	}
	in.UserID = UserID(r.Context())

	out, err := s.PaymentIntents.Execute(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) generateText(w http.ResponseWriter, r *http.Request) {
	var in gt.Input
	if _, ok := s.decode(w, r, validation.SchemaGenerateText, &in); !ok {
		return
	}
	if in.CareGroupID != "" && !s.requireMember(w, r, in.CareGroupID) {
		return
	}

	out, err := s.Text.Execute(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) generateImage(w http.ResponseWriter, r *http.Request) {
	var in gi.Input
	if _, ok := s.decode(w, r, validation.SchemaGenerateImage, &in); !ok {
		return
	}

	out, err := s.Images.Execute(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) geocode(w http.ResponseWriter, r *http.Request) {
	var in ga.Input
	if _, ok := s.decode(w, r, validation.SchemaGeocode, &in); !ok {
		return
	}

	out, err := s.Geocoder.Execute(r.Context(), &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// searchFacilities serves identical searches from the gateway cache for
// SearchCacheTTL.
func (s *Server) searchFacilities(w http.ResponseWriter, r *http.Request) {
	var in sf.Input
	body, ok := s.decode(w, r, validation.SchemaFacilitySearch, &in)
	if !ok {
		return
	}

	ctx := r.Context()
	useCache := s.Cache != nil && s.config.SearchCacheTTL > 0
	key := cache.ResponseKey("search-facilities", body)

	if useCache {
		cached, err := s.Cache.Get(ctx, key)
		switch {
		case err == nil:
			metrics.CacheHit("facility-search")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		case !stderrors.Is(err, cache.ErrMiss):
			s.logger.Warn("facility search cache read failed", map[string]interface{}{"error": err})
		}
		metrics.CacheMiss("facility-search")
	}

	out, err := s.Facilities.Execute(ctx, &in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := json.Marshal(out)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if useCache {
		if err := s.Cache.Set(ctx, key, data, s.config.SearchCacheTTL); err != nil {
			s.logger.Warn("facility search cache write failed", map[string]interface{}{"error": err})
		}
	}

	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
