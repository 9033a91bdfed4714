// Package commands provides the CLI commands for Floyd.
package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version   = "0.1.0"
	BuildTime = "dev"
)

var (
	printLogs  bool
	logLevel   string
	logToFile  bool
	showConfig bool
	globalModel string
)

var rootCmd = &cobra.Command{
	Use:   "floyd",
	Short: "Floyd - an AI agent runtime",
	Long: `Floyd runs an agentic conversation loop against an LLM, discovering and
invoking tools over MCP, persisting session history, and enforcing
per-tool permission.

Run 'floyd run' to start an interactive session, or 'floyd mcp serve'
to expose the local tool catalogue over the MCP WebSocket protocol.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logCfg := logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Output:    os.Stderr,
			Pretty:    printLogs,
			LogToFile: logToFile,
		}
		if !printLogs && !logToFile {
			logCfg.Level = logging.FatalLevel
		}
		logging.Init(logCfg)

		if showConfig {
			dir, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "error getting working directory: %v\n", err)
				os.Exit(1)
			}
			cfg, err := config.Load(dir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
				os.Exit(1)
			}
			data, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Println(string(data))
			os.Exit(0)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-file", false, "Write logs to a timestamped file")
	rootCmd.PersistentFlags().BoolVar(&showConfig, "show-config", false, "Print merged configuration as JSON and exit")
	rootCmd.PersistentFlags().StringVarP(&globalModel, "model", "m", "", "Model override, provider/model format")

	rootCmd.SetVersionTemplate(fmt.Sprintf("floyd %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(permissionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns dir if set, otherwise the current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// GetGlobalModel returns the --model flag's value, if set.
func GetGlobalModel() string {
	return globalModel
}

func splitProviderModel(spec string) (provider, model string) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '/' {
			return spec[:i], spec[i+1:]
		}
	}
	return spec, ""
}
