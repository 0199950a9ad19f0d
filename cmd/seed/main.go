// Demo-data seeder: a handful of online users with crossing preferences,
// enough to watch the matching pass pair people locally.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/glintdate/glint-backend/internal/config"
	"github.com/glintdate/glint-backend/internal/infrastructure/database"
	"github.com/lib/pq"
)

type seedUser struct {
	name          string
	gender        string
	age           int
	city          string
	desiredGender string
	minAge        int
	maxAge        int
	cities        []string
}

var seedUsers = []seedUser{
	{"Alice", "female", 24, "Berlin", "male", 22, 30, []string{"Berlin"}},
	{"Bob", "male", 25, "Berlin", "female", 20, 28, []string{"Berlin"}},
	{"Clara", "female", 29, "Hamburg", "male", 25, 35, nil},
	{"Daniel", "male", 31, "Hamburg", "female", 26, 34, []string{"Hamburg", "Berlin"}},
	{"Emma", "female", 22, "Munich", "male", 21, 27, []string{"Munich"}},
	{"Felix", "male", 23, "Munich", "female", 20, 26, nil},
	{"Greta", "female", 27, "Berlin", "male", 24, 32, nil},
	{"Henrik", "male", 28, "Cologne", "female", 23, 30, nil},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, u := range seedUsers {
		var id int64
		err := db.QueryRowxContext(ctx, `
			INSERT INTO users (name, gender, age, city, is_online)
			VALUES ($1, $2, $3, $4, true)
			RETURNING id
		`, u.name, u.gender, u.age, u.city).Scan(&id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed user %s: %v\n", u.name, err)
			os.Exit(1)
		}
		_, err = db.ExecContext(ctx, `
			INSERT INTO preferences (user_id, desired_gender, min_age, max_age, cities)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id) DO NOTHING
		`, id, u.desiredGender, u.minAge, u.maxAge, pq.Array(u.cities))
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed preferences for %s: %v\n", u.name, err)
			os.Exit(1)
		}
		fmt.Printf("seeded user %d (%s)\n", id, u.name)
	}

	fmt.Println("done")
}
