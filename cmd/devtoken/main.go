// Command devtoken prints a signed cashier token for local development.
//
//	go run ./cmd/devtoken -name Ana -role cashier -ttl 12h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/georgemunganga/printa-pos/internal/modules/auth"
	"github.com/georgemunganga/printa-pos/internal/platform/logging"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger := logging.New("info")

	id := flag.String("id", "", "cashier id (random when empty)")
	name := flag.String("name", "Cashier", "cashier display name")
	role := flag.String("role", "cashier", "cashier role")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	cashierID := uuid.New()
	if *id != "" {
		parsed, err := uuid.Parse(*id)
		if err != nil {
			logger.WithError(err).Fatal("invalid cashier id")
		}
		cashierID = parsed
	}

	token, err := auth.NewService(secret).Issue(auth.Cashier{ID: cashierID, Name: *name, Role: *role}, *ttl)
	if err != nil {
		logger.WithError(err).Fatal("could not sign token")
	}
	fmt.Println(token)
}
