package qrcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const tokenVersion = "op1"

var (
	// ErrMalformed is returned when a token cannot be parsed at all.
	ErrMalformed = errors.New("malformed gate pass")
	// ErrSignature is returned when the signature does not verify.
	ErrSignature = errors.New("invalid gate pass signature")
	// ErrExpired is returned when the embedded validity window has passed.
	ErrExpired = errors.New("gate pass validity window passed")
)

// Payload is the content carried inside a gate pass.
type Payload struct {
	RequestID  string     `json:"requestId"`
	StudentID  string     `json:"studentId"`
	Direction  string     `json:"direction"`
	IssuedAt   time.Time  `json:"issuedAt"`
	ValidUntil *time.Time `json:"validUntil,omitempty"`
	Nonce      string     `json:"jti"`
}

// Codec signs and verifies gate pass strings.
type Codec struct {
	keys map[string][]byte
}

// NewCodec derives one signing key per direction from the master secret so a
// pass minted for one direction can never verify as the other.
func NewCodec(secret string, directions ...string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("gate pass secret missing")
	}
	if len(directions) == 0 {
		return nil, fmt.Errorf("at least one direction required")
	}
	keys := make(map[string][]byte, len(directions))
	for _, direction := range directions {
		key := make([]byte, sha256.Size)
		reader := hkdf.New(sha256.New, []byte(secret), nil, []byte("outing-pass:"+direction))
		if _, err := io.ReadFull(reader, key); err != nil {
			return nil, fmt.Errorf("derive key for %s: %w", direction, err)
		}
		keys[direction] = key
	}
	return &Codec{keys: keys}, nil
}

// Encode signs the payload. A missing nonce is filled in.
func (c *Codec) Encode(p Payload) (string, Payload, error) {
	if p.RequestID == "" || p.StudentID == "" {
		return "", Payload{}, fmt.Errorf("requestId and studentId required")
	}
	key, ok := c.keys[p.Direction]
	if !ok {
		return "", Payload{}, fmt.Errorf("unsupported direction %q", p.Direction)
	}
	if p.Nonce == "" {
		p.Nonce = uuid.NewString()
	}
	p.IssuedAt = p.IssuedAt.UTC()
	if p.ValidUntil != nil {
		until := p.ValidUntil.UTC()
		p.ValidUntil = &until
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", Payload{}, fmt.Errorf("marshal payload: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	token := strings.Join([]string{tokenVersion, p.Direction, body, sign(key, body)}, ".")
	return token, p, nil
}

// Decode verifies the token and returns its payload. The validity window is
// checked against now; pass the zero time to skip it.
func (c *Codec) Decode(token string, now time.Time) (Payload, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 4 || parts[0] != tokenVersion {
		return Payload{}, ErrMalformed
	}
	direction, body, signature := parts[1], parts[2], parts[3]
	key, ok := c.keys[direction]
	if !ok {
		return Payload{}, ErrMalformed
	}
	if !hmac.Equal([]byte(sign(key, body)), []byte(signature)) {
		return Payload{}, ErrSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Direction != direction || p.RequestID == "" {
		return Payload{}, ErrSignature
	}
	if !now.IsZero() && p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return p, ErrExpired
	}
	return p, nil
}

func sign(key []byte, body string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}
