package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chylnx/hub/go/internal/dbconfig"
)

func main() {
	// 1) Load the schema
	data, err := os.ReadFile("sql/schema.sql")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read schema: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Apply the schema
	if _, err := pool.Exec(context.Background(), string(data)); err != nil {
		fmt.Fprintf(os.Stderr, "apply schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Schema applied")

	// 4) Seed admin identities from ADMIN_USERNAMES (comma separated)
	admins := strings.Split(os.Getenv("ADMIN_USERNAMES"), ",")
	var (
		seeded int
		errs   int
	)

	for _, username := range admins {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}

		_, err := pool.Exec(context.Background(), `
            INSERT INTO identities (id, username, is_admin)
            VALUES ($1, $2, TRUE)
            ON CONFLICT (username) DO UPDATE SET is_admin = TRUE
        `, uuid.New(), username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error seeding admin %s: %v\n", username, err)
			errs++
			continue
		}
		seeded++
	}

	// 5) Print summary
	fmt.Printf("Admin seed complete: %d seeded, %d errors\n", seeded, errs)
}
