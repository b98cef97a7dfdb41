// Command createsuperuser provisions a superuser account: the superuser
// role, the wildcard permission attached to it, and the user itself. Safe to
// rerun; only the user creation step refuses to repeat.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"pressline.org/internal/auth"
	"pressline.org/internal/config"
	"pressline.org/internal/store/pg"
)

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
)

func main() {
	var (
		email    = flag.String("email", os.Getenv("SUPERUSER_EMAIL"), "superuser email")
		username = flag.String("username", os.Getenv("SUPERUSER_USERNAME"), "superuser username")
		name     = flag.String("name", os.Getenv("SUPERUSER_NAME"), "display name")
		phone    = flag.String("phone", os.Getenv("SUPERUSER_PHONE"), "phone number")
		password = flag.String("password", os.Getenv("SUPERUSER_PASSWORD"), "password (or set SUPERUSER_PASSWORD)")
	)
	flag.Parse()

	if err := run(*email, *username, *name, *phone, *password); err != nil {
		log.Fatalf("createsuperuser: %v", err)
	}
}

func run(email, username, name, phone, password string) error {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email %q", email)
	}
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username must be 3-32 characters of letters, digits, underscore or hyphen")
	}
	if err := validatePassword(password); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseDSN == "" {
		return fmt.Errorf("PG_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := pg.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	codec, err := auth.NewCodec(cfg.TokenSecret, auth.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		return err
	}
	svc, err := auth.NewService(pg.NewStore(db), codec, auth.NewHasher(cfg.BcryptCost))
	if err != nil {
		return err
	}

	user, err := svc.EnsureSuperuser(ctx, auth.SuperuserSpec{
		Email:       email,
		Username:    username,
		Name:        strings.TrimSpace(name),
		PhoneNumber: strings.TrimSpace(phone),
		Password:    password,
	})
	if err != nil {
		return err
	}

	log.Printf("superuser %q created (id=%d)", user.Username, user.ID)
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	var upper, lower, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune("!@#$%^&*()_+-=[]{}|;:,.<>?", c):
			special = true
		}
	}
	if !upper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !lower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !digit {
		return fmt.Errorf("password must contain at least one number")
	}
	if !special {
		return fmt.Errorf("password must contain at least one special character")
	}
	return nil
}
