package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/pucco93/ebsi-access-control/internal/infra/security"
)

// Prints a fresh P-521 key pair and the EBSI DID derived from it. The private
// key is shown once and never written anywhere.
func main() {
	pair, err := security.GenerateKeyPair()
	if err != nil {
		log.Fatalf("generate key pair: %v", err)
	}

	jwk, err := json.MarshalIndent(pair.PublicKey, "", "  ")
	if err != nil {
		log.Fatalf("encode public key: %v", err)
	}

	fmt.Println("Private key (store it now, it will not be shown again):")
	fmt.Print(pair.PrivateKeyPEM)
	fmt.Println()
	fmt.Println("Public key:")
	fmt.Println(string(jwk))
	fmt.Println()
	fmt.Println("EBSI DID:")
	fmt.Println(pair.DID)
}
