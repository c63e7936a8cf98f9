// Package capability implements the bearer tokens that carry authority over
// a portal. Holding the token is the proof; the portal only keeps a bcrypt
// hash of it.
package capability

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/irsalhamdi/course-portal/random"
	"golang.org/x/crypto/bcrypt"
)

const tokenLength = 40

type Capability struct {
	PortalID string `json:"portalId"`
	Holder   string `json:"holder"`
	Token    string `json:"token"`
}

// Issue mints a capability for holder on the portal and returns it along
// with the hash to persist. cost is the bcrypt cost; out of range values
// fall back to bcrypt.DefaultCost.
func Issue(portalID, holder string, cost int) (Capability, []byte, error) {
	tok, err := random.StringSecure(tokenLength)
	if err != nil {
		return Capability{}, nil, fmt.Errorf("generating token: %w", err)
	}

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tok), cost)
	if err != nil {
		return Capability{}, nil, fmt.Errorf("hashing token: %w", err)
	}

	c := Capability{PortalID: portalID, Holder: holder, Token: tok}
	return c, hash, nil
}

func (c Capability) Matches(hash []byte) bool {
	if c.Token == "" || len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(c.Token)) == nil
}

// String encodes c for transport in a header.
func (c Capability) String() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

func Parse(s string) (Capability, error) {
	if s == "" {
		return Capability{}, errors.New("empty capability")
	}

	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Capability{}, fmt.Errorf("decoding capability: %w", err)
	}

	var c Capability
	if err := json.Unmarshal(b, &c); err != nil {
		return Capability{}, fmt.Errorf("unmarshaling capability: %w", err)
	}

	if c.PortalID == "" || c.Holder == "" || c.Token == "" {
		return Capability{}, errors.New("capability is missing fields")
	}
	return c, nil
}
