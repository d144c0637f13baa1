// internal/workers/care/search-facilities/models.go
package searchfacilities

type Input struct {
	Keywords     string   `json:"keywords,omitempty"`
	FacilityType string   `json:"facilityType,omitempty"`
	Insurance    []string `json:"acceptedInsurance,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusKm     float64  `json:"radiusKm,omitempty"`
	From         int      `json:"from,omitempty"`
	Size         int      `json:"size,omitempty"`
}

func (in *Input) located() bool {
	return in.Latitude != nil && in.Longitude != nil
}

type Output struct {
	Facilities []Facility `json:"facilities"`
	TotalHits  int64      `json:"totalHits"`
	Took       int        `json:"took"`
}

type Facility struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	FacilityType      string   `json:"facilityType"`
	Address           string   `json:"address,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	AcceptedInsurance []string `json:"acceptedInsurance,omitempty"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	Rating            float64  `json:"rating,omitempty"`
	DistanceKm        *float64 `json:"distanceKm,omitempty"`
	Score             float64  `json:"score"`
}

// facilityDoc is the document shape stored in the facilities index.
type facilityDoc struct {
	Name              string   `json:"name"`
	FacilityType      string   `json:"facility_type"`
	Address           string   `json:"address"`
	Phone             string   `json:"phone"`
	AcceptedInsurance []string `json:"accepted_insurance"`
	Rating            float64  `json:"rating"`
	Location          struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"location"`
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string        `json:"_id"`
			Score  *float64      `json:"_score"`
			Source facilityDoc   `json:"_source"`
			Sort   []interface{} `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}
