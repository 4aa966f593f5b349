package main

import (
	"fmt"
	"os"

	"github.com/ternary-app/link-server/internal/util"
)

// Computes the stored hash for a raw token, for matching a token against
// app_tokens.token_hash or user_sessions.token_hash during incident response.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: TOKEN_SALT=... go run scripts/hash-token.go <raw-token>\n")
		os.Exit(1)
	}

	salt := os.Getenv("TOKEN_SALT")
	if salt == "" {
		fmt.Fprintf(os.Stderr, "Error: TOKEN_SALT is not set\n")
		os.Exit(1)
	}

	fmt.Println(util.NewTokenHasher(salt).Hash(os.Args[1]))
}
