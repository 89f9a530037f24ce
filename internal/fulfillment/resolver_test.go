package fulfillment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"kycvault/internal/evidence"
	"kycvault/internal/token"
	id "kycvault/pkg/domain"
)

type ResolverSuite struct {
	suite.Suite
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func doc(category evidence.Category) *evidence.Document {
	return &evidence.Document{
		ID:         id.NewDocumentID(),
		OwnerID:    id.NewUserID(),
		Category:   category,
		StorageRef: "s3://bucket/" + string(category),
		Status:     evidence.StatusUploaded,
		UploadedAt: time.Now().UTC(),
		Current:    true,
	}
}

func activeCredential(subject token.Subject) *token.Credential {
	return &token.Credential{
		ID:       id.NewTokenID(),
		OwnerID:  id.NewUserID(),
		Subject:  subject,
		Status:   token.StatusActive,
		IssuedAt: time.Now().UTC(),
	}
}

func (s *ResolverSuite) TestResolve() {
	s.Run("nothing uploaded and no credential leaves everything missing", func() {
		resolution := Resolve([]string{"name", "pan_card", "selfie"}, nil, nil)
		s.Empty(resolution.Satisfied)
		s.Equal([]string{"name"}, resolution.MissingData)
		s.Equal([]string{"pan_card", "selfie"}, resolution.MissingDocuments)
		s.False(resolution.Complete())
	})

	s.Run("documents plus a named credential satisfy the same request", func() {
		docs := []*evidence.Document{doc(evidence.CategoryPANCard), doc(evidence.CategorySelfie)}
		credential := activeCredential(token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"})

		resolution := Resolve([]string{"name", "pan_card", "selfie"}, docs, credential)
		s.Equal([]string{"name", "pan_card", "selfie"}, resolution.Satisfied)
		s.Empty(resolution.MissingData)
		s.Empty(resolution.MissingDocuments)
		s.True(resolution.Complete())
	})

	s.Run("pan is a data field while pan_card is a document field", func() {
		credential := activeCredential(token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"})

		resolution := Resolve([]string{"pan", "pan_card"}, nil, credential)
		s.Equal([]string{"pan"}, resolution.Satisfied)
		s.Equal([]string{"pan_card"}, resolution.MissingDocuments)
	})

	s.Run("blank subject attribute counts as missing data", func() {
		credential := activeCredential(token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"})

		resolution := Resolve([]string{"address", "phone"}, nil, credential)
		s.Empty(resolution.Satisfied)
		s.Equal([]string{"address", "phone"}, resolution.MissingData)
	})

	s.Run("revoked credential satisfies no data field", func() {
		credential := activeCredential(token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"})
		credential.Status = token.StatusRevoked

		resolution := Resolve([]string{"name"}, nil, credential)
		s.Equal([]string{"name"}, resolution.MissingData)
	})

	s.Run("date_of_birth aliases to the dob attribute", func() {
		credential := activeCredential(token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"})

		resolution := Resolve([]string{"date_of_birth"}, nil, credential)
		s.Equal([]string{"date_of_birth"}, resolution.Satisfied)
	})

	s.Run("either aadhaar side satisfies the aadhaar alias", func() {
		resolution := Resolve([]string{"aadhaar"}, []*evidence.Document{doc(evidence.CategoryAadhaarBack)}, nil)
		s.Equal([]string{"aadhaar"}, resolution.Satisfied)

		resolution = Resolve([]string{"aadhaar_card"}, []*evidence.Document{doc(evidence.CategoryAadhaarFront)}, nil)
		s.Equal([]string{"aadhaar_card"}, resolution.Satisfied)
	})

	s.Run("photo aliases to the selfie category", func() {
		resolution := Resolve([]string{"photo"}, []*evidence.Document{doc(evidence.CategorySelfie)}, nil)
		s.Equal([]string{"photo"}, resolution.Satisfied)
	})

	s.Run("matching is case-insensitive but output keeps requested casing", func() {
		docs := []*evidence.Document{doc(evidence.CategorySelfie)}
		credential := activeCredential(token.Subject{Name: "Asha Rao", PAN: "ABCDE1234F", DOB: "1992-03-04"})

		resolution := Resolve([]string{"Name", "SELFIE", " Pan_Card "}, docs, credential)
		s.Equal([]string{"Name", "SELFIE"}, resolution.Satisfied)
		s.Equal([]string{" Pan_Card "}, resolution.MissingDocuments)
	})

	s.Run("documents placeholder is always satisfied", func() {
		resolution := Resolve([]string{"documents"}, nil, nil)
		s.Equal([]string{"documents"}, resolution.Satisfied)
		s.Empty(resolution.MissingDocuments)
		s.Empty(resolution.MissingData)
	})

	s.Run("unrecognized field falls back to direct category lookup", func() {
		resolution := Resolve([]string{"utility_bill"}, nil, nil)
		s.Equal([]string{"utility_bill"}, resolution.MissingDocuments)

		resolution = Resolve([]string{"utility_bill"}, []*evidence.Document{doc(evidence.Category("utility_bill"))}, nil)
		s.Equal([]string{"utility_bill"}, resolution.Satisfied)
	})

	s.Run("unverified documents still satisfy document fields", func() {
		uploaded := doc(evidence.CategoryPANCard)
		uploaded.Status = evidence.StatusUploaded

		resolution := Resolve([]string{"pan_card"}, []*evidence.Document{uploaded}, nil)
		s.Equal([]string{"pan_card"}, resolution.Satisfied)
	})

	s.Run("empty request resolves to all-empty sets", func() {
		resolution := Resolve(nil, nil, nil)
		s.Empty(resolution.Satisfied)
		s.Empty(resolution.MissingDocuments)
		s.Empty(resolution.MissingData)
		s.True(resolution.Complete())
	})
}
