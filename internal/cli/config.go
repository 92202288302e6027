package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dl-alexandre/gdsync/internal/config"
	"github.com/dl-alexandre/gdsync/internal/types"
	"github.com/dl-alexandre/gdsync/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long:  "Commands for managing gdsync configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Use 'config show' to see available keys",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configAddTargetCmd = &cobra.Command{
	Use:   "add-target <id> <root-folder-id>",
	Short: "Add a sync target",
	Long:  "Add an account whose files live below the given Drive folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigAddTarget,
}

var configRemoveTargetCmd = &cobra.Command{
	Use:   "remove-target <id>",
	Short: "Remove a sync target",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRemoveTarget,
}

var configResetCmd = &cobra.Command{
	Use:         "reset",
	Short:       "Reset configuration to defaults",
	Long:        "Reset all configuration settings to their default values",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{skipConfigAnnotation: "true"},
	RunE:        runConfigReset,
}

var (
	addTargetName  string
	addTargetUsers []string
)

func init() {
	configAddTargetCmd.Flags().StringVar(&addTargetName, "name", "", "Display name")
	configAddTargetCmd.Flags().StringSliceVar(&addTargetUsers, "users", nil, "Users allowed to sync to this target (default: everyone)")

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configAddTargetCmd)
	configCmd.AddCommand(configRemoveTargetCmd)
	configCmd.AddCommand(configResetCmd)
}

const redacted = "[REDACTED]"

// redactConfig returns a copy of c that is safe to print
func redactConfig(c *config.Config) *config.Config {
	cp := *c
	if cp.ClientSecret != "" {
		cp.ClientSecret = redacted
	}
	cp.Accounts = make([]config.SyncAccount, len(c.Accounts))
	for i, a := range c.Accounts {
		if a.RefreshToken != "" {
			a.RefreshToken = redacted
		}
		cp.Accounts[i] = a
	}
	return &cp
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)
	return out.WriteSuccess("config.show", redactConfig(cfg))
}

// setConfigValue applies one key/value pair. Keys match case-insensitively.
func setConfigValue(c *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "clientid":
		c.ClientID = value
	case "clientsecret":
		c.ClientSecret = value
	case "defaulttarget":
		c.DefaultTarget = value
	case "defaultoutputformat":
		c.DefaultOutputFormat = types.OutputFormat(value)
	case "requesttimeout", "uploadworkers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return utils.InvalidArgument(key, fmt.Sprintf("%s must be an integer", key))
		}
		if strings.EqualFold(key, "requesttimeout") {
			c.RequestTimeout = n
		} else {
			c.UploadWorkers = n
		}
	case "loglevel":
		c.LogLevel = strings.ToLower(value)
	case "logfile":
		c.LogFile = value
	case "journalpath":
		c.JournalPath = value
	case "coloroutput":
		c.ColorOutput = parseBool(value)
	default:
		return utils.InvalidArgument("key", fmt.Sprintf("Unknown configuration key: %s", key))
	}
	if err := c.Validate(); err != nil {
		return utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build())
	}
	return nil
}

func saveConfig(c *config.Config) error {
	if err := c.Save(globalFlags.Config); err != nil {
		return utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeUnknown,
			fmt.Sprintf("Failed to save configuration: %v", err)).Build())
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	key, value := args[0], args[1]
	if err := setConfigValue(cfg, key, value); err != nil {
		return handleError(out, "config.set", err)
	}
	if err := saveConfig(cfg); err != nil {
		return handleError(out, "config.set", err)
	}

	shown := value
	if strings.EqualFold(key, "clientsecret") {
		shown = redacted
	}
	out.Log("Configuration updated: %s = %s", key, shown)
	return out.WriteSuccess("config.set", map[string]interface{}{
		"key":   key,
		"value": shown,
	})
}

func addTarget(c *config.Config, account config.SyncAccount) error {
	c.Accounts = append(c.Accounts, account)
	if err := c.Validate(); err != nil {
		c.Accounts = c.Accounts[:len(c.Accounts)-1]
		return utils.WrapAppError(err, utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).
			WithContext("target", account.ID).
			Build())
	}
	if c.DefaultTarget == "" && len(c.Accounts) == 1 {
		c.DefaultTarget = account.ID
	}
	return nil
}

func removeTarget(c *config.Config, id string) bool {
	for i, a := range c.Accounts {
		if a.ID == id {
			c.Accounts = append(c.Accounts[:i], c.Accounts[i+1:]...)
			if c.DefaultTarget == id {
				c.DefaultTarget = ""
			}
			return true
		}
	}
	return false
}

func runConfigAddTarget(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	account := config.SyncAccount{
		ID:       args[0],
		Name:     addTargetName,
		FolderID: args[1],
		UserIDs:  addTargetUsers,
	}
	if account.Name == "" {
		account.Name = account.ID
	}
	if err := addTarget(cfg, account); err != nil {
		return handleError(out, "config.add-target", err)
	}
	if err := saveConfig(cfg); err != nil {
		return handleError(out, "config.add-target", err)
	}

	out.Log("Added target %s; run 'gdsync auth login --target %s' to authorize it", account.ID, account.ID)
	return out.WriteSuccess("config.add-target", account.Target())
}

func runConfigRemoveTarget(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	if !removeTarget(cfg, args[0]) {
		return handleError(out, "config.remove-target", noTargetError(args[0]))
	}
	if err := saveConfig(cfg); err != nil {
		return handleError(out, "config.remove-target", err)
	}

	// The stored token is useless without the target
	if store, err := newTokenStore(); err == nil {
		if err := store.DeleteRefreshToken(args[0]); err != nil {
			out.AddWarning("TOKEN_NOT_REMOVED", err.Error(), "warning")
		}
	}

	out.Log("Removed target %s", args[0])
	return out.WriteSuccess("config.remove-target", map[string]string{"target": args[0], "status": "removed"})
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	fresh := config.DefaultConfig()
	if err := saveConfig(fresh); err != nil {
		return handleError(out, "config.reset", err)
	}

	out.Log("Configuration reset to defaults")
	return out.WriteSuccess("config.reset", fresh)
}

// parseBool parses a boolean value from a string
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
