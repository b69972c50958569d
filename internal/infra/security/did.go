package security

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"

	"github.com/pucco93/ebsi-access-control/internal/core/port"
)

// DIDKeyPrefix starts every natural-person EBSI DID.
const DIDKeyPrefix = "did:key:"

// jwk_jcs-pub multicodec 0xeb51 as an unsigned varint.
var jcsPubCodec = []byte{0xd1, 0xd6, 0x03}

// DIDFromJWK derives the EBSI did:key of a public JWK: the JCS form of its
// required members, prefixed with the jwk_jcs-pub codec and base58btc encoded.
func DIDFromJWK(j JWK) (string, error) {
	if _, err := j.PublicKey(); err != nil {
		return "", err
	}
	canonical, err := CanonicalJSON(map[string]string{
		"crv": j.Crv,
		"kty": j.Kty,
		"x":   j.X,
		"y":   j.Y,
	})
	if err != nil {
		return "", err
	}
	payload := append(append([]byte{}, jcsPubCodec...), canonical...)
	return DIDKeyPrefix + "z" + base58.Encode(payload), nil
}

// CanonicalJSON serialises a flat string object per RFC 8785: members
// sorted by key, no insignificant whitespace, no HTML escaping.
func CanonicalJSON(members map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, members[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("canonical json: %w", err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// DIDResolver turns user-supplied public keys into EBSI DIDs.
type DIDResolver struct{}

// NewDIDResolver returns the resolver used by the user creation flow.
func NewDIDResolver() *DIDResolver {
	return &DIDResolver{}
}

// ResolveDID accepts a JWK (object, JSON text or value) or a PEM encoded
// public key string.
func (DIDResolver) ResolveDID(publicKey any) (string, error) {
	if s, ok := publicKey.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "-----BEGIN") {
			key, err := jwt.ParseECPublicKeyFromPEM([]byte(trimmed))
			if err != nil {
				return "", fmt.Errorf("parse pem public key: %w", err)
			}
			jwk, err := PublicJWK(key)
			if err != nil {
				return "", err
			}
			return DIDFromJWK(jwk)
		}
		publicKey = trimmed
	}

	jwk, err := ParseJWK(publicKey)
	if err != nil {
		return "", err
	}
	return DIDFromJWK(jwk)
}

var _ port.DIDResolver = DIDResolver{}
