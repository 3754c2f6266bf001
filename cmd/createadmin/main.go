package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"novalabs_hub/internal/app/service"
	"novalabs_hub/internal/domain/repository"
	"novalabs_hub/internal/platform/config"
	"novalabs_hub/internal/platform/database"
)

// createadmin bootstraps the first admin account from outside the
// serving process. Non-interactive: everything comes from flags, with
// the password falling back to ADMIN_PASSWORD so it stays out of shell
// history.
func main() {
	email := flag.String("email", "", "admin email address (required)")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "admin password (or set ADMIN_PASSWORD)")
	firstName := flag.String("first-name", "Platform", "admin first name")
	lastName := flag.String("last-name", "Admin", "admin last name")
	institution := flag.String("institution", "", "admin institution (optional)")
	replace := flag.Bool("replace", false, "demote the existing admin to instructor and create this one")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("email and password are required")
	}

	config.Load()
	database.Connect()
	defer database.Close()

	userRepo := repository.NewPgUserRepository(database.DB)
	bootstrap := service.NewBootstrapService(userRepo)

	req := service.BootstrapAdminRequest{
		Email:     *email,
		Password:  *password,
		FirstName: *firstName,
		LastName:  *lastName,
		Replace:   *replace,
	}
	if *institution != "" {
		req.Institution = institution
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := bootstrap.CreateAdmin(ctx, req)
	if err != nil {
		log.Fatalf("createadmin failed: %v", err)
	}
	fmt.Printf("Admin created: %s (%s)\n", admin.Email, admin.ID)
}
