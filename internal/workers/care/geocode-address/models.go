// internal/workers/care/geocode-address/models.go
package geocodeaddress

type Input struct {
	Address     string `json:"address"`
	CountryCode string `json:"countryCode,omitempty"`
}

type Output struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"displayName"`
	Cached      bool    `json:"cached"`
}

// nominatimPlace is one entry of the search response. Coordinates arrive
// as strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
