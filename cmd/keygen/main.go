// Command keygen prints fresh values for the three SECRET_ environment
// variables the auth core requires. Run it once per deployment and store the
// output in the secret manager; the keys are independent and none is derived
// from the others.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
)

const keyLen = 32

func newKey() string {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		log.Fatalf("failed to read random source: %v", err)
	}
	return base64.URLEncoding.EncodeToString(key)
}

func main() {
	fmt.Printf("SECRET_PASSWORD_PEPPER=%s\n", newKey())
	fmt.Printf("SECRET_TOKEN_KEY=%s\n", newKey())
	fmt.Printf("SECRET_ENCRYPTION_KEY=%s\n", newKey())
}
