package actiontoken

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/RidoNanu/DENTAL-CLINIC-TYRA-sub001/services/scheduling-service/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

type Action string

const (
	ActionCancel  Action = "cancel"
	ActionConfirm Action = "confirm"
)

func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionCancel, ActionConfirm:
		return a, true
	}
	return "", false
}

// Target is the status the action moves an appointment to.
func (a Action) Target() model.Status {
	if a == ActionConfirm {
		return model.StatusConfirmed
	}
	return model.StatusCancelled
}

type claims struct {
	Action Action `json:"act"`
	jwt.RegisteredClaims
}

// Claims is what a verified token says.
type Claims struct {
	ID            string
	AppointmentID string
	Action        Action
	ExpiresAt     time.Time
}

type Signer struct {
	key        []byte
	defaultTTL time.Duration
	now        func() time.Time
}

const keyInfo = "clinic/action-token/v1"

// NewSigner derives the token key from the application secret so it never equals
// the key used for admin sessions.
func NewSigner(appSecret []byte, defaultTTL time.Duration) (*Signer, error) {
	if len(appSecret) < 16 {
		return nil, errors.New("action token secret must be at least 16 bytes")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, appSecret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive action token key: %w", err)
	}
	if defaultTTL <= 0 {
		defaultTTL = 72 * time.Hour
	}
	return &Signer{key: key, defaultTTL: defaultTTL, now: time.Now}, nil
}

// Issue mints a token; ttl <= 0 uses the signer default.
func (s *Signer) Issue(appointmentID string, action Action, ttl time.Duration) (string, time.Time, error) {
	if appointmentID == "" {
		return "", time.Time{}, fmt.Errorf("%w: appointment id required", model.ErrInvalidInput)
	}
	if _, ok := ParseAction(string(action)); !ok {
		return "", time.Time{}, fmt.Errorf("%w: unknown action %q", model.ErrInvalidInput, action)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()
	exp := now.Add(ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   appointmentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse checks signature, expiry and shape. Every failure wraps model.ErrTokenInvalid.
func (s *Signer) Parse(token string) (Claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", model.ErrTokenInvalid, err)
	}
	if c.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", model.ErrTokenInvalid)
	}
	if _, ok := ParseAction(string(c.Action)); !ok {
		return Claims{}, fmt.Errorf("%w: unknown action", model.ErrTokenInvalid)
	}
	return Claims{
		ID:            c.ID,
		AppointmentID: c.Subject,
		Action:        c.Action,
		ExpiresAt:     c.ExpiresAt.Time,
	}, nil
}
