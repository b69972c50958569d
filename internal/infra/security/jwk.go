package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrUnsupportedKey indicates a key type or curve the console cannot derive a DID for.
var ErrUnsupportedKey = errors.New("security: unsupported public key")

// JWK is the public part of an elliptic-curve JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

var curvesByName = map[string]elliptic.Curve{
	"P-256": elliptic.P256(),
	"P-384": elliptic.P384(),
	"P-521": elliptic.P521(),
}

// PublicJWK renders key as a JWK with fixed-width coordinates.
func PublicJWK(key *ecdsa.PublicKey) (JWK, error) {
	if key == nil || key.Curve == nil {
		return JWK{}, fmt.Errorf("%w: nil key", ErrUnsupportedKey)
	}
	params := key.Curve.Params()
	if _, ok := curvesByName[params.Name]; !ok {
		return JWK{}, fmt.Errorf("%w: curve %q", ErrUnsupportedKey, params.Name)
	}
	size := (params.BitSize + 7) / 8
	return JWK{
		Kty: "EC",
		Crv: params.Name,
		X:   base64.RawURLEncoding.EncodeToString(key.X.FillBytes(make([]byte, size))),
		Y:   base64.RawURLEncoding.EncodeToString(key.Y.FillBytes(make([]byte, size))),
	}, nil
}

// PublicKey decodes the JWK back into an ecdsa key and checks the point is on the curve.
func (j JWK) PublicKey() (*ecdsa.PublicKey, error) {
	if j.Kty != "EC" {
		return nil, fmt.Errorf("%w: kty %q", ErrUnsupportedKey, j.Kty)
	}
	curve, ok := curvesByName[j.Crv]
	if !ok {
		return nil, fmt.Errorf("%w: curve %q", ErrUnsupportedKey, j.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(j.X, "="))
	if err != nil {
		return nil, fmt.Errorf("decode jwk x: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(j.Y, "="))
	if err != nil {
		return nil, fmt.Errorf("decode jwk y: %w", err)
	}
	key := &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(x), Y: new(big.Int).SetBytes(y)}
	if !curve.IsOnCurve(key.X, key.Y) {
		return nil, fmt.Errorf("%w: point not on %s", ErrUnsupportedKey, j.Crv)
	}
	return key, nil
}

// ParseJWK accepts a JWK as raw JSON, a decoded JSON object or a JWK value.
func ParseJWK(v any) (JWK, error) {
	switch t := v.(type) {
	case JWK:
		return t, nil
	case *JWK:
		if t == nil {
			return JWK{}, fmt.Errorf("%w: nil jwk", ErrUnsupportedKey)
		}
		return *t, nil
	case []byte:
		return unmarshalJWK(t)
	case json.RawMessage:
		return unmarshalJWK(t)
	case string:
		return unmarshalJWK([]byte(t))
	case map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return JWK{}, fmt.Errorf("encode jwk object: %w", err)
		}
		return unmarshalJWK(raw)
	default:
		return JWK{}, fmt.Errorf("%w: %T", ErrUnsupportedKey, v)
	}
}

func unmarshalJWK(raw []byte) (JWK, error) {
	var j JWK
	if err := json.Unmarshal(raw, &j); err != nil {
		return JWK{}, fmt.Errorf("decode jwk: %w", err)
	}
	if j.Kty == "" || j.Crv == "" || j.X == "" || j.Y == "" {
		return JWK{}, fmt.Errorf("%w: jwk is missing members", ErrUnsupportedKey)
	}
	return j, nil
}
