package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "kycvault/pkg/domain"
	dErrors "kycvault/pkg/domain-errors"
)

// ProofClaims is the signed payload embedded in every issued credential.
type ProofClaims struct {
	Name    string `json:"name"`
	PAN     string `json:"pan"`
	DOB     string `json:"dob"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Signer produces and checks the proof blob attached to credentials.
// The blob is a compact HS256 JWS over the subject snapshot; verifiers
// only need the shared key, not the credential store.
type Signer struct {
	signingKey []byte
	issuer     string
}

func NewSigner(signingKey, issuer string) *Signer {
	return &Signer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Sign creates the proof blob for a credential. Proofs carry no expiry;
// revocation is tracked in the store, not in the blob.
func (s *Signer) Sign(tokenID id.TokenID, ownerID id.UserID, subject Subject, issuedAt time.Time) (string, error) {
	claims := ProofClaims{
		Name:    subject.Name,
		PAN:     subject.PAN,
		DOB:     subject.DOB,
		Address: subject.Address,
		Phone:   subject.Phone,
		Email:   subject.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       tokenID.String(),
			Subject:  ownerID.String(),
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign credential proof")
	}
	return signed, nil
}

// Verify checks a proof blob's signature and returns its claims.
func (s *Signer) Verify(proof string) (*ProofClaims, error) {
	parsed, err := jwt.ParseWithClaims(proof, &ProofClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential proof")
	}

	claims, ok := parsed.Claims.(*ProofClaims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential proof claims")
	}
	return claims, nil
}
