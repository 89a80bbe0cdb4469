// Command gatewaytoken mints a bearer token for the interaction gateway.
package main

import (
	"flag"
	"fmt"
	"os"

	"signupboard/config"
	"signupboard/internal/adapters/auth"
)

func main() {
	var subject string
	flag.StringVar(&subject, "subject", "gateway", "identity of the calling gateway")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.GatewayJWTSecret == "" {
		fmt.Fprintln(os.Stderr, "GATEWAY_JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewJWTIssuer(cfg.GatewayJWTSecret, cfg.GatewayTokenTTL).Issue(subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
