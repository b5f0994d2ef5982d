package tgc

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram"
	"go.uber.org/zap"

	"github.com/fastfinder/fastfinder/internal/logging"
)

// RunWithAuth runs f on a signed in client, logging the bot in with token
// when the stored session is not authorized yet.
func RunWithAuth(ctx context.Context, client *telegram.Client, token string, f func(ctx context.Context) error) error {
	return client.Run(ctx, func(ctx context.Context) error {
		logger := logging.FromContext(ctx)
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return errors.Wrap(err, "auth status")
		}

		if !status.Authorized {
			if token == "" {
				return errors.New("not authorized, bot token is empty")
			}
			logger.Debug("creating bot session")
			if _, err := client.Auth().Bot(ctx, token); err != nil {
				return errors.Wrap(err, "bot login")
			}
			if status, err = client.Auth().Status(ctx); err != nil {
				return errors.Wrap(err, "auth status")
			}
		}

		logger.Info("bot session",
			zap.Int64("id", status.User.ID),
			zap.String("username", status.User.Username),
			zap.Int("dc", client.Config().ThisDC))

		return f(ctx)
	})
}
