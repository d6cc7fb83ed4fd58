package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/openidx/authcore/pkg/cache"
	"github.com/openidx/authcore/pkg/claims"
	"github.com/openidx/authcore/pkg/directory"
	"github.com/openidx/authcore/pkg/keys"
	"github.com/openidx/authcore/pkg/logging"
	"github.com/openidx/authcore/pkg/resolver"
	"github.com/openidx/authcore/pkg/service"
	"github.com/openidx/authcore/pkg/storage"
	storagememory "github.com/openidx/authcore/pkg/storage/memory"
	"github.com/openidx/authcore/pkg/storage/pg"
	"github.com/openidx/authcore/pkg/token"
)

var seedDemo bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication token service",
	RunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real deployments set the environment directly
		_ = godotenv.Load()

		logger := logging.ConfigureFromEnv()

		config, err := service.LoadFileConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if listenAddr != "" {
			config.ListenAddr = listenAddr
		}
		if issuer != "" {
			config.Issuer = issuer
		}
		if keyFile != "" {
			config.Keys.File = keyFile
		}
		if keyDir != "" {
			config.Keys.Dir = keyDir
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		keyManager := keys.NewManager()
		if config.Keys.File != "" {
			if err := keyManager.LoadPrivateKey(config.Keys.File); err != nil {
				return fmt.Errorf("failed to load private key: %w", err)
			}
		} else {
			if err := keyManager.GenerateKeyPair(config.Keys.Bits); err != nil {
				return fmt.Errorf("failed to generate key pair: %w", err)
			}
			if config.Keys.Dir != "" {
				privateKeyPath := filepath.Join(config.Keys.Dir, "private.pem")
				publicKeyPath := filepath.Join(config.Keys.Dir, "public.pem")
				if err := keyManager.SavePrivateKey(privateKeyPath); err != nil {
					return fmt.Errorf("failed to save private key: %w", err)
				}
				if err := keyManager.SavePublicKey(publicKeyPath); err != nil {
					return fmt.Errorf("failed to save public key: %w", err)
				}
				logger.Info().Str("private_key", privateKeyPath).Str("public_key", publicKeyPath).
					Msg("generated new key pair")
			}
		}

		cacheClient, err := cache.New(config.Cache)
		if err != nil {
			return fmt.Errorf("failed to create cache client: %w", err)
		}
		defer cacheClient.Close()

		var (
			durable   storage.RefreshTokenStore
			users     directory.UserDirectory
			orgs      directory.OrganizationDirectory
			tenants   directory.TenantDirectory
			roles     directory.RoleDirectory
			perms     directory.PermissionDirectory
			endpoints directory.EndpointDirectory
		)
		switch config.Storage.Driver {
		case "postgres":
			store, err := pg.New(ctx, config.Storage.DSN)
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("failed to ensure schema: %w", err)
			}
			durable = store
			users, orgs, tenants, roles, perms, endpoints = store, store, store, store, store, store
		default:
			mem := directory.NewMemory()
			if seedDemo {
				if err := seedDemoDirectory(mem); err != nil {
					return fmt.Errorf("failed to seed demo directory: %w", err)
				}
				logger.Info().Msg("seeded demo directory")
			}
			durable = storagememory.New()
			users, orgs, tenants, roles, perms, endpoints = mem, mem, mem, mem, mem, mem
		}

		composer := claims.NewComposer(users, orgs, tenants, roles, perms)
		signer := token.NewSigner(keyManager, config.Issuer)
		tokenStore := token.NewStore(durable, cacheClient)
		manager := token.NewManager(composer, signer, tokenStore, users, directory.BcryptVerifier{}, token.ManagerConfig{
			AccessTokenTTL:  config.AccessTokenTTL(),
			RefreshTokenTTL: config.RefreshTokenTTL(),
		})

		res, err := resolver.New(endpoints, perms)
		if err != nil {
			return fmt.Errorf("failed to create resolver: %w", err)
		}

		svc := service.New(manager, signer, res, service.NewMetrics(), config)
		return svc.Start(ctx, config.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&issuer, "issuer", "", "Token issuer identifier (overrides config)")
	serveCmd.Flags().StringVar(&keyFile, "key-file", "", "Path to private key file (overrides config)")
	serveCmd.Flags().StringVar(&keyDir, "key-dir", "", "Directory to save generated key files (overrides config)")
	serveCmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "Seed the in-memory directory with a demo tenant and user")

	rootCmd.AddCommand(serveCmd)
}

// seedDemoDirectory populates the in-memory directory for local development:
// one tenant, one organization, one admin user (admin@demo.local / admin),
// and a pair of guarded endpoints.
func seedDemoDirectory(mem *directory.Memory) error {
	hash, err := directory.HashSecret("admin")
	if err != nil {
		return err
	}

	mem.AddTenant(directory.Tenant{ID: "tenant-demo", Name: "Demo Tenant"})
	mem.AddOrganization(directory.Organization{ID: "org-demo", Name: "Demo Org"})
	mem.AddUser(directory.User{
		ID:             "user-demo-admin",
		TenantID:       "tenant-demo",
		OrganizationID: "org-demo",
		Email:          "admin@demo.local",
		Status:         directory.StatusActive,
		PasswordHash:   hash,
	})

	readUsers := directory.Permission{ID: "perm-user-read", Resource: "user", Action: "read"}
	writeUsers := directory.Permission{ID: "perm-user-write", Resource: "user", Action: "write"}
	mem.GrantRole("user-demo-admin", directory.Role{ID: "role-admin", Name: "ADMIN"}, readUsers, writeUsers)

	mem.AddEndpoint(directory.PermissionEndpoint{
		ID:           "ep-user-get",
		PermissionID: readUsers.ID,
		URLPattern:   "/api/users/{userId}",
		Method:       "GET",
		Description:  "Fetch a user",
	})
	mem.AddEndpoint(directory.PermissionEndpoint{
		ID:           "ep-user-put",
		PermissionID: writeUsers.ID,
		URLPattern:   "/api/users/{userId}",
		Method:       "PUT",
		Description:  "Update a user",
	})
	return nil
}
