// Command maintenance-token mints a short-lived bearer token for calling the
// maintenance endpoints from a scheduler.
//
// Usage:
//
//	maintenance-token -s cron -t 15
//
// The signing secret is read from JWT_SECRET (or .env).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/raushankrgupta/birthday-club/config"
	"github.com/raushankrgupta/birthday-club/utils"
)

func main() {
	config.LoadConfig()

	fs := flag.NewFlagSet("maintenance-token", flag.ExitOnError)
	subject := fs.String("s", "scheduler", "token subject")
	ttl := fs.Int("t", 15, "token validity (in minutes)")
	_ = fs.Parse(os.Args[1:])

	if *ttl <= 0 {
		log.Fatalf("token validity must be positive, got %d", *ttl)
	}

	token, err := utils.GenerateMaintenanceToken(config.JWTSecret, *subject, time.Duration(*ttl)*time.Minute)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}
	fmt.Println(token)
}
