package validation

// Names of the request schemas registered by Default.
const (
	SchemaClaim          = "claim"
	SchemaPaymentIntent  = "payment-intent"
	SchemaGenerateText   = "generate-text"
	SchemaGenerateImage  = "generate-image"
	SchemaGeocode        = "geocode"
	SchemaFacilitySearch = "facility-search"
	SchemaWellness       = "wellness-metrics"
	SchemaCartItem       = "cart-item"
	SchemaCareTask       = "care-task"
)

var builtinSchemas = map[string]string{
	SchemaClaim: `{
		"type": "object",
		"required": ["memberId", "planId", "careGroupId", "serviceCode", "serviceDate", "billedAmountCents"],
		"properties": {
			"memberId":          {"type": "string", "minLength": 1},
			"planId":            {"type": "string"},
			"careGroupId":       {"type": "string", "minLength": 1},
			"serviceCode":       {"type": "string", "pattern": "^[a-z_]+$"},
			"serviceDate":       {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
			"billedAmountCents": {"type": "integer", "minimum": 1},
			"providerName":      {"type": "string", "maxLength": 200},
			"notes":             {"type": "string", "maxLength": 2000}
		}
	}`,
	SchemaPaymentIntent: `{
		"type": "object",
		"required": ["orderId"],
		"properties": {
			"orderId": {"type": "string", "minLength": 1}
		}
	}`,
	SchemaGenerateText: `{
		"type": "object",
		"required": ["prompt"],
		"properties": {
			"prompt":      {"type": "string", "minLength": 1, "maxLength": 8000},
			"context":     {"type": "string", "maxLength": 8000},
			"careGroupId": {"type": "string"},
			"maxTokens":   {"type": "integer", "minimum": 1, "maximum": 4096}
		}
	}`,
	SchemaGenerateImage: `{
		"type": "object",
		"required": ["prompt"],
		"properties": {
			"prompt": {"type": "string", "minLength": 1, "maxLength": 4000},
			"size":   {"type": "string", "enum": ["1024x1024", "1792x1024", "1024x1792"]},
			"n":      {"type": "integer", "minimum": 1, "maximum": 4}
		}
	}`,
	SchemaGeocode: `{
		"type": "object",
		"required": ["address"],
		"properties": {
			"address":     {"type": "string", "minLength": 3, "maxLength": 500},
			"countryCode": {"type": "string", "pattern": "^[A-Za-z]{2}$"}
		}
	}`,
	SchemaFacilitySearch: `{
		"type": "object",
		"properties": {
			"keywords":          {"type": "string", "maxLength": 200},
			"facilityType":      {"type": "string"},
			"acceptedInsurance": {"type": "array", "items": {"type": "string"}},
			"latitude":          {"type": "number", "minimum": -90, "maximum": 90},
			"longitude":         {"type": "number", "minimum": -180, "maximum": 180},
			"radiusKm":          {"type": "number", "exclusiveMinimum": 0, "maximum": 500},
			"from":              {"type": "integer", "minimum": 0},
			"size":              {"type": "integer", "minimum": 0}
		}
	}`,
	SchemaWellness: `{
		"type": "object",
		"properties": {
			"mood":     {"type": "integer", "minimum": 0, "maximum": 10},
			"energy":   {"type": "integer", "minimum": 0, "maximum": 10},
			"sleep":    {"type": "integer", "minimum": 0, "maximum": 10},
			"activity": {"type": "integer", "minimum": 0, "maximum": 10},
			"notes":    {"type": "string", "maxLength": 1000}
		}
	}`,
	SchemaCartItem: `{
		"type": "object",
		"required": ["productId"],
		"properties": {
			"productId": {"type": "string", "minLength": 1},
			"quantity":  {"type": "integer", "minimum": 1, "maximum": 99}
		}
	}`,
	SchemaCareTask: `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title":       {"type": "string", "minLength": 1, "maxLength": 200},
			"description": {"type": "string", "maxLength": 4000},
			"assigneeId":  {"type": "string"},
			"dueAt":       {"type": "string", "format": "date-time"}
		}
	}`,
}

// Default returns a registry with every request schema compiled.
func Default() (*Registry, error) {
	r := NewRegistry()
	for name, schema := range builtinSchemas {
		if err := r.Register(name, schema); err != nil {
			return nil, err
		}
	}
	return r, nil
}
