// Command devtoken prints a signed access token for local testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/noah-isme/jobcoach-api/internal/models"
	"github.com/noah-isme/jobcoach-api/internal/service"
	"github.com/noah-isme/jobcoach-api/pkg/config"
)

func main() {
	id := flag.String("id", "", "user or admin id")
	role := flag.String("role", string(models.RoleSuperAdmin), "SUPERADMIN, ADMIN or USER")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "full name claim")
	flag.Parse()

	if *id == "" || !models.UserRole(*role).Valid() {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("devtoken refuses to run with ENV=production")
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiration})
	token, expiresAt, err := tokens.IssueToken(*id, models.UserRole(*role), *email, *name)
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
}
