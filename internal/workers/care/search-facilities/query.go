// internal/workers/care/search-facilities/query.go
package searchfacilities

import "fmt"

// BuildQuery turns the search input into an Elasticsearch request body.
// Keywords score; type, insurance and distance only filter.
func BuildQuery(in *Input, radiusKm float64) map[string]interface{} {
	must := []interface{}{}
	filter := []interface{}{}

	if in.Keywords != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  in.Keywords,
				"fields": []string{"name^3", "description^2", "services", "address"},
				"type":   "best_fields",
			},
		})
	}
	if len(must) == 0 {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	if in.FacilityType != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"facility_type": in.FacilityType},
		})
	}
	if len(in.Insurance) > 0 {
		filter = append(filter, map[string]interface{}{
			"terms": map[string]interface{}{"accepted_insurance": in.Insurance},
		})
	}

	boolQuery := map[string]interface{}{"must": must}

	var sort []interface{}
	if in.located() {
		origin := map[string]interface{}{"lat": *in.Latitude, "lon": *in.Longitude}
		filter = append(filter, map[string]interface{}{
			"geo_distance": map[string]interface{}{
				"distance": fmt.Sprintf("%gkm", radiusKm),
				"location": origin,
			},
		})
		sort = []interface{}{
			map[string]interface{}{
				"_geo_distance": map[string]interface{}{
					"location": origin,
					"order":    "asc",
					"unit":     "km",
				},
			},
		}
	} else {
		sort = []interface{}{
			map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
			map[string]interface{}{"rating": map[string]interface{}{"order": "desc", "missing": "_last"}},
		}
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort":  sort,
	}
}
