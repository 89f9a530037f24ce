package fulfillment

import (
	"strings"

	"kycvault/internal/evidence"
)

// PlaceholderField is always satisfied and never contributes to the
// missing sets. Requesters use it to signal "whatever documents exist".
const PlaceholderField = "documents"

// dataFields maps a normalized requested field to the credential subject
// key it reads. Data fields are satisfied from the active credential, not
// from uploaded documents.
var dataFields = map[string]string{
	"name":          "name",
	"dob":           "dob",
	"date_of_birth": "dob",
	"address":       "address",
	"phone":         "phone",
	"email":         "email",
	"pan":           "pan",
}

// documentAliases maps a normalized requested field to the document
// categories that can satisfy it. One present category is enough.
// Fields absent from both tables fall back to a direct category lookup
// by their own normalized name.
var documentAliases = map[string][]evidence.Category{
	"aadhaar":         {evidence.CategoryAadhaarFront, evidence.CategoryAadhaarBack},
	"aadhaar_card":    {evidence.CategoryAadhaarFront, evidence.CategoryAadhaarBack},
	"aadhaar_front":   {evidence.CategoryAadhaarFront},
	"aadhaar_back":    {evidence.CategoryAadhaarBack},
	"pan_card":        {evidence.CategoryPANCard},
	"passport":        {evidence.CategoryPassport},
	"driving_license": {evidence.CategoryDrivingLicense},
	"voter_id":        {evidence.CategoryVoterID},
	"photo":           {evidence.CategorySelfie},
	"selfie":          {evidence.CategorySelfie},
}

// normalizeField lowercases and trims a requested field for table lookup.
// The caller keeps the original casing for output.
func normalizeField(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}
