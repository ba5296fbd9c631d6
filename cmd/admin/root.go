package main

import (
	"context"
	"strings"
	"sync"

	"github.com/hungtran3011/research-review-sub001/internal/logging"
	"github.com/hungtran3011/research-review-sub001/internal/server"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var args []string
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			args = []string{"-c", path}
		}
		c.config, c.configErr = config.LoadConfig(args)
	})
	return c.config, c.configErr
}

// withStorage opens the configured storage, migrating it, and closes it
// after fn.
func (c *commandContext) withStorage(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, m repomanager.RepositoryManager) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.NewJSON(cmd.ErrOrStderr(), cfg.LogLevel)
	m, err := server.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(ctx, cfg, m)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Review workflow administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newIssueTokenCommand(ctx))
	rootCmd.AddCommand(newRevokeCommand(ctx))

	return rootCmd
}
