package session

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// Identity is the keypair identifying the current user to the durable store.
type Identity struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a new Identity reading entropy from r.
func Generate(r io.Reader) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("cannot generate identity: %w", err)
	}
	return &Identity{public: pub, private: priv}, nil
}

// PublicKey returns the identity public key.
func (id *Identity) PublicKey() ed25519.PublicKey { return id.public }

// Sign signs msg with the identity private key.
func (id *Identity) Sign(msg []byte) []byte { return ed25519.Sign(id.private, msg) }

// DeriveAddress computes the store address of an identity: the unpadded
// base64url encoding of the SHA3-256 digest of its public key.
func DeriveAddress(id *Identity) (string, error) {
	if id == nil || len(id.public) != ed25519.PublicKeySize {
		return "", fmt.Errorf("cannot derive address: invalid public key")
	}
	sum := sha3.Sum256(id.public)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// jwk is the persisted form of an Identity, loosely following the OKP JSON web key layout.
type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	D   string `json:"d"`
}

func (id *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(jwk{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(id.public),
		D:   base64.RawURLEncoding.EncodeToString(id.private.Seed()),
	})
}

func (id *Identity) UnmarshalJSON(data []byte) error {
	var k jwk
	if err := json.Unmarshal(data, &k); err != nil {
		return err
	}
	if k.Kty != "OKP" || k.Crv != "Ed25519" {
		return fmt.Errorf("unsupported key type %q/%q", k.Kty, k.Crv)
	}
	seed, err := base64.RawURLEncoding.DecodeString(k.D)
	if err != nil || len(seed) != ed25519.SeedSize {
		return fmt.Errorf("invalid private key")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	if k.X != base64.RawURLEncoding.EncodeToString(pub) {
		return fmt.Errorf("public key does not match private key")
	}
	id.public, id.private = pub, priv
	return nil
}
