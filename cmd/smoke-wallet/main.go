package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"vegaslounge.live/internal/wallet"
	"vegaslounge.live/internal/wallet/remote"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	base := env("WALLET_URL", "http://localhost:3030")
	clientID := env("WALLET_CLIENT_ID", "1")
	clientSecret := env("WALLET_CLIENT_SECRET", "1")
	redirectURI := env("WALLET_REDIRECT_URI", "http://localhost")

	client, err := remote.New(base, clientID, clientSecret)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.Login(ctx, "player1@example.com", "casino", redirectURI); err != nil {
		log.Fatalf("login: %v", err)
	}

	start, err := client.Balance(ctx)
	if err != nil {
		log.Fatalf("balance: %v", err)
	}

	betAmount := decimal.NewFromInt(300)
	payAmount := decimal.NewFromInt(450)
	txBase := fmt.Sprintf("smoke-%d", rand.Int())

	betRes, err := client.Bet(ctx, txBase+"-bet", []wallet.Bet{
		{BetType: "main", BetAmount: betAmount},
	})
	if err != nil {
		log.Fatalf("bet: %v", err)
	}
	if !betRes.Balance.Equal(start.Sub(betAmount)) {
		log.Fatalf("bet balance mismatch: got %s, want %s", betRes.Balance, start.Sub(betAmount))
	}

	// Idempotent replay must not move the balance again.
	replay, err := client.Bet(ctx, txBase+"-bet", []wallet.Bet{
		{BetType: "main", BetAmount: betAmount},
	})
	if err != nil {
		log.Fatalf("bet replay: %v", err)
	}
	if !replay.Balance.Equal(betRes.Balance) {
		log.Fatalf("replay moved the balance: %s -> %s", betRes.Balance, replay.Balance)
	}

	payRes, err := client.Payoff(ctx, txBase+"-pay", []wallet.Payoff{
		{BetType: "main", PayoffAmount: payAmount},
	})
	if err != nil {
		log.Fatalf("payoff: %v", err)
	}
	want := start.Sub(betAmount).Add(payAmount)
	if !payRes.Balance.Equal(want) {
		log.Fatalf("payoff balance mismatch: got %s, want %s", payRes.Balance, want)
	}

	if err := client.Refresh(ctx); err != nil {
		log.Fatalf("refresh: %v", err)
	}
	end, err := client.Balance(ctx)
	if err != nil {
		log.Fatalf("balance after refresh: %v", err)
	}
	if !end.Equal(want) {
		log.Fatalf("balance drifted after refresh: got %s, want %s", end, want)
	}

	fmt.Printf("wallet smoke test passed: balance %s -> %s\n", start, end)
}
