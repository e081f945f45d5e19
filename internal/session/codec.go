package session

import (
	"crypto/sha256"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/securecookie"

	"github.com/okian/flames/internal/domain/model"
)

// Codec converts the session user to and from its durable form.
type Codec interface {
	Encode(u model.User) (string, error)
	Decode(raw string) (model.User, error)
}

// JSONCodec stores the user object as plain JSON.
type JSONCodec struct{}

// Encode implements Codec.
func (JSONCodec) Encode(u model.User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", errors.Wrap(err, "encode session")
	}
	return string(b), nil
}

// Decode implements Codec. Anything that is not a JSON object with an id
// and a token is malformed.
func (JSONCodec) Decode(raw string) (model.User, error) {
	var u model.User
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &u); err != nil {
		return model.User{}, errors.Mark(errors.Wrap(err, "decode session"), ErrMalformedSession)
	}
	if err := checkUser(u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// SecureCodec signs the stored JSON with an HMAC derived from a secret so a
// tampered file reads as no session.
type SecureCodec struct {
	sc *securecookie.SecureCookie
}

// NewSecureCodec derives the signing key from secret.
func NewSecureCodec(secret string) *SecureCodec {
	hashKey := sha256.Sum256([]byte(secret))
	sc := securecookie.New(hashKey[:], nil).
		SetSerializer(securecookie.JSONEncoder{}).
		MaxAge(0)
	return &SecureCodec{sc: sc}
}

// Encode implements Codec.
func (c *SecureCodec) Encode(u model.User) (string, error) {
	s, err := c.sc.Encode(Key, u)
	if err != nil {
		return "", errors.Wrap(err, "encode session")
	}
	return s, nil
}

// Decode implements Codec.
func (c *SecureCodec) Decode(raw string) (model.User, error) {
	var u model.User
	if err := c.sc.Decode(Key, strings.TrimSpace(raw), &u); err != nil {
		return model.User{}, errors.Mark(errors.Wrap(err, "decode session"), ErrMalformedSession)
	}
	if err := checkUser(u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

func checkUser(u model.User) error {
	if u.ID == "" || u.Token == "" {
		return errors.Mark(errors.New("session without id or token"), ErrMalformedSession)
	}
	return nil
}
