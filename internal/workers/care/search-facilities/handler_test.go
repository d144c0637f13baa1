// internal/workers/care/search-facilities/handler_test.go
package searchfacilities

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"carehub/internal/common/errors"
	"carehub/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchResult = `{
  "took": 4,
  "hits": {
    "total": {"value": 2},
    "hits": [
      {"_id": "f-1", "_score": null, "sort": [1.23456],
       "_source": {"name": "Riverside Clinic", "facility_type": "clinic",
                   "accepted_insurance": ["CareHub Health"], "rating": 4.5,
                   "location": {"lat": 40.71, "lon": -74.0}}},
      {"_id": "f-2", "_score": null, "sort": [7.9],
       "_source": {"name": "Harbor Rehab", "facility_type": "clinic",
                   "location": {"lat": 40.75, "lon": -74.05}}}
    ]
  }
}`

type captured struct {
	path  string
	query map[string]string
	body  map[string]interface{}
}

func newESServer(t *testing.T, status int, response string, got *captured) (*httptest.Server, *elasticsearch.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.path = r.URL.Path
			got.query = map[string]string{"from": r.URL.Query().Get("from"), "size": r.URL.Query().Get("size")}
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &got.body)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return srv, client
}

func createTestConfig() *Config {
	return LoadConfig()
}

func createTestInput() *Input {
	lat, lon := 40.7128, -74.0060
	return &Input{
		Keywords:     "physical therapy",
		FacilityType: "clinic",
		Insurance:    []string{"CareHub Health"},
		Latitude:     &lat,
		Longitude:    &lon,
		RadiusKm:     10,
	}
}

func TestHandler_Execute_LocatedSearch(t *testing.T) {
	var got captured
	srv, client := newESServer(t, http.StatusOK, searchResult, &got)
	defer srv.Close()

	h := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	assert.Equal(t, "/facilities/_search", got.path)
	assert.Equal(t, "0", got.query["from"])
	assert.Equal(t, "20", got.query["size"])

	boolQuery := got.body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	filters := boolQuery["filter"].([]interface{})
	require.Len(t, filters, 3)
	geo := filters[2].(map[string]interface{})["geo_distance"].(map[string]interface{})
	assert.Equal(t, "10km", geo["distance"])

	sort := got.body["sort"].([]interface{})
	assert.Contains(t, sort[0], "_geo_distance")

	require.Len(t, out.Facilities, 2)
	assert.Equal(t, int64(2), out.TotalHits)
	assert.Equal(t, 4, out.Took)
	assert.Equal(t, "Riverside Clinic", out.Facilities[0].Name)
	require.NotNil(t, out.Facilities[0].DistanceKm)
	assert.Equal(t, 1.23, *out.Facilities[0].DistanceKm)
	assert.Equal(t, []string{"CareHub Health"}, out.Facilities[0].AcceptedInsurance)
}

func TestHandler_Execute_UnlocatedSearchSortsByScore(t *testing.T) {
	var got captured
	srv, client := newESServer(t, http.StatusOK, `{"took":1,"hits":{"total":{"value":0},"hits":[]}}`, &got)
	defer srv.Close()

	h := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{Size: 500, From: -3})
	require.NoError(t, err)
	assert.Empty(t, out.Facilities)

	assert.Equal(t, "100", got.query["size"])
	assert.Equal(t, "0", got.query["from"])

	boolQuery := got.body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.NotContains(t, boolQuery, "filter")
	must := boolQuery["must"].([]interface{})
	assert.Contains(t, must[0], "match_all")

	sort := got.body["sort"].([]interface{})
	assert.Contains(t, sort[0], "_score")
}

func TestHandler_Execute_Errors(t *testing.T) {
	lat := 1.0
	tests := []struct {
		name     string
		status   int
		input    *Input
		wantCode errors.ErrorCode
	}{
		{"latitude without longitude", http.StatusOK, &Input{Latitude: &lat}, errors.ErrCodeInvalidInput},
		{"negative radius", http.StatusOK, &Input{RadiusKm: -1}, errors.ErrCodeInvalidInput},
		{"missing index", http.StatusNotFound, &Input{}, errors.ErrCodeIndexNotFound},
		{"bad query", http.StatusBadRequest, &Input{}, errors.ErrCodeSearchQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, client := newESServer(t, tt.status, `{"error":{"type":"x"}}`, nil)
			defer srv.Close()

			h := NewHandler(createTestConfig(), client, logger.NewTestLogger(t))
			_, err := h.Execute(context.Background(), tt.input)

			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, stdErr.Code)
		})
	}
}

func TestPaginate(t *testing.T) {
	h := NewHandler(createTestConfig(), nil, logger.NewNoOpLogger())

	tests := []struct {
		from, size         int
		wantFrom, wantSize int
	}{
		{0, 0, 0, 20},
		{5, 1, 5, 1},
		{0, 100, 0, 100},
		{0, 101, 0, 100},
		{-1, -1, 0, 20},
	}
	for _, tt := range tests {
		from, size := h.paginate(tt.from, tt.size)
		assert.Equal(t, tt.wantFrom, from)
		assert.Equal(t, tt.wantSize, size)
	}
}
