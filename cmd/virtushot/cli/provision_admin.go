package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/virtushot/photoshoot-api/internal/core/service"
	"github.com/virtushot/photoshoot-api/internal/pkg/config"
	"github.com/virtushot/photoshoot-api/pkg/logger"
)

const adminPasswordEnv = "ADMIN_PASSWORD"

func newProvisionAdminCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
	)

	cmd := &cobra.Command{
		Use:   "provision-admin",
		Short: "Create an admin account, or promote an existing one",
		Example: `  virtushot provision-admin --email ops@example.com --password secret
  ADMIN_PASSWORD=secret virtushot provision-admin --email ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(adminPasswordEnv)
			}
			return runProvisionAdmin(cmd.Context(), email, password, name)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (defaults to $"+adminPasswordEnv+")")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func runProvisionAdmin(ctx context.Context, email, password, name string) error {
	if password == "" {
		return errors.New("a password is required (--password or $" + adminPasswordEnv + ")")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if cfg.StoreDriver == config.StoreMemory {
		return errors.New("provision-admin needs STORE_DRIVER=mongo; the memory store does not outlive this command")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: !cfg.IsProduction(), Service: serviceName, Version: appVersion})

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.close(context.WithoutCancel(ctx)) }()

	auth := service.NewAuthService(st.accounts, service.AuthConfig{
		JWTSecret:          cfg.JWTSecret,
		TokenTTL:           cfg.TokenTTL,
		SignupBonus:        cfg.Credits.SignupBonus,
		DefaultCreditLimit: cfg.Credits.DefaultLimit,
	}, log)

	account, err := auth.ProvisionAdmin(ctx, email, password, name)
	if err != nil {
		return fmt.Errorf("provision admin: %w", err)
	}

	fmt.Printf("Admin %s ready (id %s)\n", account.Email, account.ID)
	return nil
}
