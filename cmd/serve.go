package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/harborlight-org/tokend/internal/api"
	"github.com/harborlight-org/tokend/internal/audit"
	"github.com/harborlight-org/tokend/internal/config"
	"github.com/harborlight-org/tokend/internal/core"
	"github.com/harborlight-org/tokend/internal/directory"
	"github.com/harborlight-org/tokend/internal/identity"
	"github.com/harborlight-org/tokend/internal/keys"
	"github.com/harborlight-org/tokend/internal/logging"
	"github.com/harborlight-org/tokend/internal/revocation"
	"github.com/harborlight-org/tokend/internal/service"
	"github.com/harborlight-org/tokend/internal/store"
	"github.com/harborlight-org/tokend/internal/tasks"
	"github.com/harborlight-org/tokend/internal/token"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tokend server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.Server.Addr
		}

		log.Info().Msg("Initializing identity providers...")
		registry, err := identity.BuildRegistry(cmd.Context(), cfg.IdentityProviders)
		if err != nil {
			return fmt.Errorf("building identity registry: %w", err)
		}

		log.Info().Msg("Initializing directory...")
		dir, err := buildDirectory(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building directory: %w", err)
		}

		keySource, err := buildKeySource(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("building key source: %w", err)
		}

		revoked := buildRevocationList(cfg)
		auditor, err := buildAuditor(cfg)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Error().Err(err).Msg("closing auditor")
			}
		}()

		tokenStore := store.NewInMemoryTokenStore()

		issuer := token.NewIssuer(keySource, cfg.Issuer.URL, cfg.Issuer.Audience)
		verifier := token.NewVerifier(keySource, revoked)

		pantryLoc, err := cfg.Pantry.Location()
		if err != nil {
			return err
		}

		svc := service.NewTokenService(
			registry, dir, issuer, revoked, tokenStore, auditor,
			cfg.Issuer.SessionTTL, pantryLoc)

		taskManager := tasks.NewManager()
		registerSweeps(taskManager, tokenStore, revoked)

		srv := api.NewServer(cfg, keySource, verifier, taskManager, auditor, tokenStore, svc)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes(),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

func buildDirectory(ctx context.Context, cfg *config.Config) (core.Directory, error) {
	switch cfg.Directory.Type {
	case "firestore":
		var opts []option.ClientOption
		if cfg.Directory.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Directory.CredentialsFile))
		}
		return directory.NewFirestore(ctx, cfg.Directory.ProjectID, cfg.Directory.Collection, opts...)
	case "static":
		return directory.NewInMemoryDirectory(cfg.Directory.Records), nil
	default:
		return nil, fmt.Errorf("unknown directory type %q", cfg.Directory.Type)
	}
}

func buildKeySource(ctx context.Context, cfg *config.Config) (core.KeySource, error) {
	if cfg.Issuer.KeyFile != "" {
		return keys.NewFileSource(cfg.Issuer.KeyFile, cfg.Issuer.KeyID)
	}
	log.Info().Msgf("No signing key configured, running verify-only against %s", cfg.Issuer.JWKSURL)
	return keys.NewRemoteSource(ctx, cfg.Issuer.JWKSURL, cfg.Issuer.KeyID)
}

func buildRevocationList(cfg *config.Config) core.RevocationList {
	if cfg.Revocation.Type == "redis" {
		return revocation.NewRedisList(redis.NewClient(&redis.Options{
			Addr:     cfg.Revocation.Addr,
			Password: cfg.Revocation.Password,
			DB:       cfg.Revocation.DB,
		}))
	}
	return revocation.NewInMemoryList()
}

func buildAuditor(cfg *config.Config) (core.Auditor, error) {
	if !cfg.Audit.Enabled {
		return audit.NewNoopAuditor(), nil
	}
	switch cfg.Audit.Type {
	case "file":
		return audit.NewFileAuditor(cfg.Audit.Path)
	case "memory", "":
		return audit.NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Audit.Type)
	}
}

func registerSweeps(manager *tasks.Manager, tokenStore core.TokenStore, revoked core.RevocationList) {
	manager.Register("token-metadata-sweep", time.Hour,
		func(ctx context.Context, logger logging.InternalLogger) error {
			n, err := tokenStore.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			logger.Info("purged %d expired token metadata record(s)", n)
			return nil
		})

	// the redis list expires entries by TTL on its own
	if memList, ok := revoked.(*revocation.InMemoryList); ok {
		manager.Register("revocation-compact", time.Hour,
			func(ctx context.Context, logger logging.InternalLogger) error {
				n, err := memList.Compact(ctx)
				if err != nil {
					return err
				}
				logger.Info("dropped %d expired revocation entries", n)
				return nil
			})
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (overrides config)")
	f.bindConfigFlag(serveCmd.Flags())
	_ = serveCmd.MarkFlagRequired("config")
}
