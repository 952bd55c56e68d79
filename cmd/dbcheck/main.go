// Command dbcheck connects with the configured credentials, runs one
// trivial query and reports the outcome. Useful for verifying a .env
// file before starting the server or console.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"student-registry/internal/config"
)

func main() {
	godotenv.Overload()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "connection failed:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, cfg.Database.ConnString())
	if err != nil {
		fmt.Fprintln(os.Stderr, "connection failed:", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	var user, database string
	if err := conn.QueryRow(ctx, "select current_user, current_database()").Scan(&user, &database); err != nil {
		fmt.Fprintln(os.Stderr, "connection failed:", err)
		os.Exit(1)
	}

	fmt.Println("database connection successful")
	fmt.Printf("user=%s database=%s\n", user, database)
}
