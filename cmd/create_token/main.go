package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"stattrack/pkg/auth"
	"stattrack/pkg/config"
)

// create_token mints a bearer token for the read API, or with -hash-key
// prints the bcrypt hash to put in API_KEY_HASH.
func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to TOKEN_TTL)")
	hashKey := flag.String("hash-key", "", "print the bcrypt hash of this api key and exit")
	flag.Parse()

	if *hashKey != "" {
		h, err := auth.HashKey(*hashKey)
		if err != nil {
			log.Fatalf("hash failed: %v", err)
		}
		fmt.Println(h)
		return
	}

	if flag.NArg() < 1 {
		fmt.Println("usage: go run ./cmd/create_token [-ttl 720h] <subject>")
		os.Exit(2)
	}
	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set in environment")
	}
	lifetime := cfg.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	token, err := auth.Issue([]byte(cfg.JWTSecret), flag.Arg(0), lifetime, time.Now())
	if err != nil {
		log.Fatalf("sign failed: %v", err)
	}
	fmt.Println(token)
}
