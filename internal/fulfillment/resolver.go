// Package fulfillment decides whether a holder's current evidence and
// active credential satisfy a requester's field set. Resolution is a pure
// computation over its inputs; it mutates nothing and always classifies
// the full requested list.
package fulfillment

import (
	"kycvault/internal/evidence"
	"kycvault/internal/token"
)

// Resolution classifies every requested field. Field identifiers keep
// the casing the requester used; matching is case-insensitive.
type Resolution struct {
	Satisfied        []string `json:"satisfied"`
	MissingDocuments []string `json:"missing_documents"`
	MissingData      []string `json:"missing_data"`
}

// Complete reports whether every requested field is satisfied.
func (r Resolution) Complete() bool {
	return len(r.MissingDocuments) == 0 && len(r.MissingData) == 0
}

// Resolve classifies the requested fields against the holder's current
// documents and active credential. Document fields are satisfied by
// presence alone; verification status is informational and does not gate
// disclosure. A nil credential means no data field can be satisfied.
func Resolve(requestedFields []string, documents []*evidence.Document, credential *token.Credential) Resolution {
	present := make(map[evidence.Category]bool, len(documents))
	for _, doc := range documents {
		present[doc.Category] = true
	}

	resolution := Resolution{
		Satisfied:        []string{},
		MissingDocuments: []string{},
		MissingData:      []string{},
	}
	for _, field := range requestedFields {
		normalized := normalizeField(field)

		if normalized == PlaceholderField {
			resolution.Satisfied = append(resolution.Satisfied, field)
			continue
		}

		if subjectKey, ok := dataFields[normalized]; ok {
			if credential != nil && credential.Status == token.StatusActive && credential.Subject.Field(subjectKey) != "" {
				resolution.Satisfied = append(resolution.Satisfied, field)
			} else {
				resolution.MissingData = append(resolution.MissingData, field)
			}
			continue
		}

		categories, ok := documentAliases[normalized]
		if !ok {
			// Unrecognized fields resolve as a direct category lookup.
			categories = []evidence.Category{evidence.Category(normalized)}
		}
		if anyPresent(present, categories) {
			resolution.Satisfied = append(resolution.Satisfied, field)
		} else {
			resolution.MissingDocuments = append(resolution.MissingDocuments, field)
		}
	}
	return resolution
}

func anyPresent(present map[evidence.Category]bool, categories []evidence.Category) bool {
	for _, category := range categories {
		if present[category] {
			return true
		}
	}
	return false
}
