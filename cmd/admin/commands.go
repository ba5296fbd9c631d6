package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hungtran3011/research-review-sub001/internal/server"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStorage(cmd, func(ctx context.Context, cfg *config.Config, m repomanager.RepositoryManager) error {
				// opening the storage already migrated it
				fmt.Fprintf(cmd.OutOrStdout(), "%s storage is up to date\n", cfg.Storage)
				return nil
			})
		},
	}
}

func newIssueTokenCommand(ctx *commandContext) *cobra.Command {
	var authorities []string

	cmd := &cobra.Command{
		Use:   "issue-token <subject-id>",
		Short: "Issue an access and refresh token pair for a subject",
		Long: "Issue an access and refresh token pair for a subject whose identity was verified elsewhere.\n" +
			"Any refresh token issued to the subject before is invalidated.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStorage(cmd, func(ctx context.Context, cfg *config.Config, m repomanager.RepositoryManager) error {
				ts, err := server.NewTokenService(cfg, m)
				if err != nil {
					return err
				}
				pair, err := ts.IssueTokensForUser(ctx, args[0], authorities)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"subject_id":         args[0],
					"authorities":        authorities,
					"access_token":       pair.AccessToken,
					"access_expires_at":  pair.AccessExpiresAt,
					"refresh_token":      pair.RefreshToken,
					"refresh_expires_at": pair.RefreshExpiresAt,
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&authorities, "authority", "a", nil, "Authority to grant (author, editor, senior-editor, reviewer); repeatable")
	return cmd
}

func newRevokeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <subject-id>",
		Short: "Revoke the refresh token of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStorage(cmd, func(ctx context.Context, cfg *config.Config, m repomanager.RepositoryManager) error {
				ts, err := server.NewTokenService(cfg, m)
				if err != nil {
					return err
				}
				if err := ts.RevokeRefreshForUser(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Refresh token of %s revoked\n", args[0])
				return nil
			})
		},
	}
}
