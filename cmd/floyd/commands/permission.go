package commands

import (
	"fmt"

	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/permission"
	"github.com/floydai/floyd/pkg/types"
	"github.com/spf13/cobra"
)

var permissionDir string

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Manage persisted per-tool permission rules",
}

var permissionGrantCmd = &cobra.Command{
	Use:   "grant <tool-pattern>",
	Short: "Grant a tool pattern, persisted to .floyd/permissions.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPermissionRecord(args[0], true)
	},
}

var permissionDenyCmd = &cobra.Command{
	Use:   "deny <tool-pattern>",
	Short: "Deny a tool pattern, persisted to .floyd/permissions.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPermissionRecord(args[0], false)
	},
}

var permissionResetCmd = &cobra.Command{
	Use:   "reset <tool-pattern>",
	Short: "Remove a persisted always-rule for a tool pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openPermissionManager()
		if err != nil {
			return err
		}
		return mgr.Reset(args[0])
	},
}

func init() {
	permissionCmd.PersistentFlags().StringVar(&permissionDir, "directory", "", "Working directory")
	permissionCmd.AddCommand(permissionGrantCmd)
	permissionCmd.AddCommand(permissionDenyCmd)
	permissionCmd.AddCommand(permissionResetCmd)
}

func openPermissionManager() (*permission.Manager, error) {
	workDir, err := GetWorkDir(permissionDir)
	if err != nil {
		return nil, err
	}
	rules, err := config.LoadPermissionRules(workDir)
	if err != nil {
		return nil, err
	}
	return permission.New(workDir, rules), nil
}

func runPermissionRecord(toolPattern string, approve bool) error {
	mgr, err := openPermissionManager()
	if err != nil {
		return err
	}
	if approve {
		if err := mgr.Grant(toolPattern, types.ScopeAlways); err != nil {
			return err
		}
		fmt.Printf("granted %q (always)\n", toolPattern)
		return nil
	}
	if err := mgr.Deny(toolPattern, types.ScopeAlways); err != nil {
		return err
	}
	fmt.Printf("denied %q (always)\n", toolPattern)
	return nil
}
