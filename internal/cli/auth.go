package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/auth"
	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Manage the refresh tokens used for each sync target",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize a sync target",
	Long: `Run the OAuth consent flow for the selected target and store the
resulting refresh token in the system keyring (or encrypted file storage).

The OAuth client comes from clientId/clientSecret in the config file or
GDSYNC_CLIENT_ID/GDSYNC_CLIENT_SECRET.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token <refresh-token|->",
	Short: "Store a refresh token",
	Long:  "Store an existing refresh token for the selected target. Pass - to read it from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSetToken,
}

var authClearTokenCmd = &cobra.Command{
	Use:   "clear-token",
	Short: "Remove a stored refresh token",
	Long:  "Delete the stored refresh token of the selected target",
	Args:  cobra.NoArgs,
	RunE:  runAuthClearToken,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  "Show which targets have a refresh token and where it is kept",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authNoBrowser bool

func init() {
	authLoginCmd.Flags().BoolVar(&authNoBrowser, "no-browser", false, "Print the consent URL and paste the code manually")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authSetTokenCmd)
	authCmd.AddCommand(authClearTokenCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func selectedAccount() (config.SyncAccount, error) {
	account, ok := cfg.SyncAccount(globalFlags.Target)
	if !ok {
		return config.SyncAccount{}, noTargetError(globalFlags.Target)
	}
	return account, nil
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	account, err := selectedAccount()
	if err != nil {
		return handleError(out, "auth.login", err)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return handleError(out, "auth.login", utils.InvalidArgument("clientId",
			"OAuth client ID and secret required. Set clientId/clientSecret in the config or GDSYNC_CLIENT_ID/GDSYNC_CLIENT_SECRET"))
	}

	store, err := newTokenStore()
	if err != nil {
		return handleError(out, "auth.login", err)
	}
	if warning := store.StorageWarning(); warning != "" {
		out.Log("%s", warning)
	}

	oauthConfig := newSessionFactory().OAuthConfig(cfg.ClientID, cfg.ClientSecret)
	token, err := auth.Login(cmd.Context(), oauthConfig, auth.LoginOptions{
		NoBrowser:   authNoBrowser,
		OpenBrowser: openBrowser,
		In:          os.Stdin,
		Out:         out.stderr,
	})
	if err != nil {
		return handleError(out, "auth.login", utils.WrapAppError(err,
			utils.NewCLIError(utils.ErrCodeAuthRequired, err.Error()).
				WithContext("target", account.ID).
				Build()))
	}

	if err := store.SaveRefreshToken(account.ID, token); err != nil {
		return handleError(out, "auth.login", err)
	}

	out.Log("Successfully authenticated!")
	return out.WriteSuccess("auth.login", map[string]interface{}{
		"target":         account.ID,
		"storageBackend": store.Backend(),
	})
}

func runAuthSetToken(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	account, err := selectedAccount()
	if err != nil {
		return handleError(out, "auth.set-token", err)
	}

	token := args[0]
	if token == "-" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return handleError(out, "auth.set-token", utils.InvalidArgument("token", "no token on stdin"))
		}
		token = line
	}
	token = strings.TrimSpace(token)

	store, err := newTokenStore()
	if err != nil {
		return handleError(out, "auth.set-token", err)
	}
	if err := store.SaveRefreshToken(account.ID, token); err != nil {
		return handleError(out, "auth.set-token", err)
	}

	out.Log("Stored refresh token for %s", account.ID)
	return out.WriteSuccess("auth.set-token", map[string]interface{}{
		"target":         account.ID,
		"storageBackend": store.Backend(),
	})
}

func runAuthClearToken(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	account, err := selectedAccount()
	if err != nil {
		return handleError(out, "auth.clear-token", err)
	}
	store, err := newTokenStore()
	if err != nil {
		return handleError(out, "auth.clear-token", err)
	}
	if err := store.DeleteRefreshToken(account.ID); err != nil {
		return handleError(out, "auth.clear-token", err)
	}
	if account.RefreshToken != "" {
		out.AddWarning("TOKEN_IN_CONFIG", "the config file still carries a refresh token for this target", "warning")
	}

	out.Log("Removed stored refresh token for %s", account.ID)
	return out.WriteSuccess("auth.clear-token", map[string]string{"target": account.ID, "status": "cleared"})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	store, err := newTokenStore()
	if err != nil {
		return handleError(out, "auth.status", err)
	}
	if warning := store.StorageWarning(); warning != "" {
		out.AddWarning("KEYRING_UNAVAILABLE", warning, "info")
	}

	resp := listTargets(cfg, "", store)
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		out.AddWarning("NO_OAUTH_CLIENT", "clientId/clientSecret are not configured", "warning")
	}
	return out.WriteSuccess("auth.status", resp)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}
