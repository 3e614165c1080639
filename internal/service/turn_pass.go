package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TurnPassClaims are the claims carried by a turn pass token.
type TurnPassClaims struct {
	CustomerID string `json:"customer_id"`
	SalonID    string `json:"salon_id"`
	Purpose    string `json:"purpose"`
	jwt.RegisteredClaims
}

const turnPassPurpose = "turn_pass"

// TurnPassIssuer signs short-lived tokens proving a customer reached the
// front of a salon's queue. Owner-side collaborators can verify a pass
// offline before serving. A missing pass never gates any transition.
type TurnPassIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTurnPassIssuer creates an issuer. The secret is required.
func NewTurnPassIssuer(secret string, ttl time.Duration) (*TurnPassIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("turn pass secret is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TurnPassIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs a turn pass for the given customer and salon.
func (i *TurnPassIssuer) Issue(salonID, customerID string) (string, error) {
	now := time.Now()
	claims := TurnPassClaims{
		CustomerID: customerID,
		SalonID:    salonID,
		Purpose:    turnPassPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "queue-broker",
			Subject:   customerID,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign turn pass: %w", err)
	}
	return signed, nil
}

// Verify parses a turn pass and checks it matches the customer and salon.
func (i *TurnPassIssuer) Verify(pass, salonID, customerID string) error {
	token, err := jwt.ParseWithClaims(pass, &TurnPassClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid turn pass: %w", err)
	}

	claims, ok := token.Claims.(*TurnPassClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid turn pass claims")
	}
	if claims.Purpose != turnPassPurpose {
		return fmt.Errorf("invalid turn pass purpose")
	}
	if claims.CustomerID != customerID {
		return fmt.Errorf("turn pass does not belong to this customer")
	}
	if claims.SalonID != salonID {
		return fmt.Errorf("turn pass is for a different salon")
	}
	return nil
}
