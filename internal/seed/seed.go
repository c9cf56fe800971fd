// Package seed bootstraps the configured OAuth clients and the default
// demo players at process start.
package seed

import (
	"context"
	"fmt"

	"vegaslounge.live/internal/account"
	"vegaslounge.live/internal/client"
	"vegaslounge.live/internal/config"
)

// Clients registers every configured bootstrap client with both grant
// kinds enabled.
func Clients(ctx context.Context, reg *client.Registry, clients []config.BootstrapClient) error {
	for _, c := range clients {
		_, err := reg.Register(ctx, c.ID, c.Secret,
			[]string{client.GrantAuthorizationCode, client.GrantRefreshToken},
			c.RedirectURIs, 0, 0)
		if err != nil {
			return fmt.Errorf("seed client %s: %w", c.ID, err)
		}
	}
	return nil
}

// Players creates the five default demo players.
func Players(ctx context.Context, svc *account.Service) error {
	for _, name := range []string{"player1", "player2", "player3", "player4", "player5"} {
		_, err := svc.CreateUser(ctx, account.NewUserInput{
			Name:     name,
			Username: name + "@" + account.DefaultEmailDomain,
			Password: account.DefaultPassword,
			Currency: account.CurrencyUSD,
			Balance:  account.DefaultCurrencyBalance[account.CurrencyUSD],
			Language: account.DefaultLanguage,
		})
		if err != nil {
			return fmt.Errorf("seed player %s: %w", name, err)
		}
	}
	return nil
}
