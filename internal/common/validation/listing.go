package validation

// ListingSchema describes the normalized listing payload accepted at the ingestion boundary.
const ListingSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["platform", "platformId"],
  "properties": {
    "platform": {
      "type": "string",
      "enum": ["airbnb", "booking", "expat_dakar", "jumia_house", "coinafrique", "keur_immo", "other"]
    },
    "platformId":    {"type": "string", "minLength": 1, "maxLength": 255},
    "url":           {"type": "string"},
    "title":         {"type": "string"},
    "hostName":      {"type": "string"},
    "hostId":        {"type": "string"},
    "hostPhone":     {"type": "string"},
    "locationText":  {"type": "string"},
    "city":          {"type": "string"},
    "neighborhood":  {"type": "string"},
    "latitude":      {"type": ["number", "null"], "minimum": -90, "maximum": 90},
    "longitude":     {"type": ["number", "null"], "minimum": -180, "maximum": 180},
    "pricePerNight": {"type": ["number", "null"], "minimum": 0},
    "bedrooms":      {"type": ["integer", "null"], "minimum": 0},
    "maxGuests":     {"type": ["integer", "null"], "minimum": 0},
    "reviewCount":   {"type": ["integer", "null"], "minimum": 0},
    "rating":        {"type": ["number", "null"], "minimum": 0, "maximum": 5}
  }
}`

var listingSchema = MustCompile(ListingSchema)

// ListingSchemaValidator returns the compiled schema for raw listing payloads.
func ListingSchemaValidator() *Schema {
	return listingSchema
}

// ValidateListing validates a raw listing document against ListingSchema.
func ValidateListing(document interface{}) (*ValidationResult, error) {
	return listingSchema.Validate(document)
}
