package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastfinder/fastfinder/internal/banner"
	"github.com/fastfinder/fastfinder/internal/cache"
	"github.com/fastfinder/fastfinder/internal/chunk"
	"github.com/fastfinder/fastfinder/internal/config"
	"github.com/fastfinder/fastfinder/internal/logging"
	"github.com/fastfinder/fastfinder/internal/media"
	"github.com/fastfinder/fastfinder/internal/reader"
	"github.com/fastfinder/fastfinder/internal/session"
	"github.com/fastfinder/fastfinder/internal/tgc"
	"github.com/fastfinder/fastfinder/internal/version"
	"github.com/fastfinder/fastfinder/internal/web"
)

func NewRun() *cobra.Command {
	var cfg config.ServerCmdConfig
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the streaming server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApplication(cmd.Context(), &cfg)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loader.Load(cmd, &cfg); err != nil {
				return err
			}
			return loader.Validate()
		},
	}
	if err := loader.RegisterFlags(cmd.Flags(), "", cfg, false); err != nil {
		panic(err)
	}
	return cmd
}

func runApplication(ctx context.Context, conf *config.ServerCmdConfig) error {
	logConf, err := logging.ParseConfig(&conf.Log)
	logging.SetConfig(logConf)
	lg := logging.DefaultLogger()
	defer lg.Sync()
	if err != nil {
		lg.Warn("invalid log level, using info", zap.Error(err))
	}
	ctx = logging.WithLogger(ctx, lg)

	cacher, err := cache.NewCache(ctx, &conf.Cache)
	if err != nil {
		return err
	}
	if c, ok := cacher.(io.Closer); ok {
		defer c.Close()
	}

	// The bot outlives ctx so in-flight streams can finish during shutdown.
	bot, err := tgc.StartBot(context.WithoutCancel(ctx), &conf.TG)
	if err != nil {
		return errors.Wrap(err, "start bot")
	}
	defer func() {
		if err := bot.Close(); err != nil {
			lg.Error("bot.close", zap.Error(err))
		}
	}()

	self, err := bot.Client.Self(ctx)
	if err != nil {
		return errors.Wrap(err, "get bot user")
	}

	stream := conf.TG.Stream
	dialer := tgc.NewDialer(bot.Client, tgc.DialerOptions{
		PoolSize:    conf.TG.PoolSize,
		TestMode:    conf.TG.TestMode,
		Middlewares: tgc.NewMiddleware(&conf.TG, tgc.WithRecovery(ctx), tgc.WithRateLimit()),
	})
	registry := session.NewRegistry(dialer, session.WithImportRetries(stream.ImportRetries))
	defer func() {
		if err := registry.Close(); err != nil {
			lg.Warn("sessions.close", zap.Error(err))
		}
	}()

	streamer := reader.NewStreamer(registry, reader.Config{
		ChunkTimeout: stream.ChunkTimeout,
		FloodRetries: stream.FloodRetries,
		MaxFloodWait: stream.MaxFloodWait,
	})
	source := media.NewCached(tgc.NewMessageSource(bot.Client.API()), cacher, conf.Cache.TTL)

	baseURL := conf.Server.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%d/", conf.Server.Port)
	}

	server := web.NewServer(source, streamer, registry, web.Options{
		Channel:     conf.TG.BinChannel,
		BaseURL:     baseURL,
		BotUsername: self.Username,
		Planner: chunk.Planner{
			MinExponent: stream.MinChunkExponent,
			MaxExponent: stream.MaxChunkExponent,
			Fallback:    stream.FallbackChunkSize,
		},
	}, lg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Server.Port),
		Handler:           server.Router(),
		ReadTimeout:       conf.Server.ReadTimeout,
		WriteTimeout:      conf.Server.WriteTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		banner.Print(os.Stdout, banner.StartupInfo{
			Version:  version.Version,
			URL:      baseURL,
			Bot:      self.Username,
			HomeDC:   registry.HomeDC(),
			LogLevel: conf.Log.Level,
		})
		lg.Info("server.start", zap.String("url", baseURL), zap.String("bot", self.Username))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("server.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.GracefulShutdown)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	lg.Info("server.stopped")
	return nil
}
