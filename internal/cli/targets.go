package cli

import (
	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/provider"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List sync targets",
	Long:  "List the configured accounts files can be synced to",
	Args:  cobra.NoArgs,
	RunE:  runTargets,
}

var targetsUser string

func init() {
	targetsCmd.Flags().StringVar(&targetsUser, "user", "", "Only list targets visible to this user")
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	// Listing never talks to Drive, so a store that cannot be opened only
	// hides where tokens come from.
	var tokens provider.TokenLoader
	if store, err := newTokenStore(); err == nil {
		tokens = store
	} else {
		out.Verbose("Token store unavailable: %v", err)
	}

	return out.WriteSuccess("targets", listTargets(cfg, targetsUser, tokens))
}

func listTargets(c *config.Config, userID string, tokens provider.TokenLoader) *types.TargetsListResponse {
	accounts := c.SyncAccounts()
	if userID != "" {
		accounts = c.UserSyncAccounts(userID)
	}

	resp := &types.TargetsListResponse{Targets: make([]types.TargetInfo, 0, len(accounts))}
	for _, a := range accounts {
		resp.Targets = append(resp.Targets, types.TargetInfo{
			ID:          a.ID,
			Name:        a.Name,
			FolderID:    a.FolderID,
			Default:     a.ID == c.DefaultTarget,
			TokenSource: tokenSource(a, tokens),
		})
	}
	return resp
}

func tokenSource(a config.SyncAccount, tokens provider.TokenLoader) string {
	if a.RefreshToken != "" {
		return "config"
	}
	if tokens != nil {
		if _, err := tokens.LoadRefreshToken(a.ID); err == nil {
			return "store"
		}
	}
	return "missing"
}
