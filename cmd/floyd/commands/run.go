package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/floydai/floyd/internal/agent"
	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/llm"
	"github.com/floydai/floyd/internal/mcpmanager"
	"github.com/floydai/floyd/internal/permission"
	"github.com/floydai/floyd/internal/sessionstore"
	"github.com/floydai/floyd/pkg/types"
	"github.com/spf13/cobra"
)

const defaultSystemPrompt = "You are Floyd, an AI agent with access to tools over MCP. Be concise and act directly."

var (
	runDir        string
	runSessionID  string
	runSystem     string
	runSystemFile string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send one message to an agent session",
	Long: `Start or continue an agent session with the given message.

Examples:
  floyd run "list the files in this repo"
  floyd run --model anthropic/claude-sonnet-4-20250514 "explain main.go"
  floyd run --session sess_01abc "and now refactor it"`,
	RunE: runAgentTurn,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "", "Session id to continue; a new session is created if omitted")
	runCmd.Flags().StringVar(&runSystem, "system", "", "System prompt text, overrides the built-in default")
	runCmd.Flags().StringVar(&runSystemFile, "system-file", "", "Read the system prompt from a file")
}

func runAgentTurn(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required: floyd run \"your message\"")
	}

	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	providerTag := cfg.DefaultProvider
	modelID := cfg.DefaultModel
	if spec := GetGlobalModel(); spec != "" {
		if tag, model := splitProviderModel(spec); model != "" {
			providerTag, modelID = tag, model
		} else {
			modelID = tag
		}
	}
	if def, ok := cfg.ProviderDefaults[providerTag]; ok && modelID == "" {
		modelID = def.Model
	}
	maxTokens := cfg.ProviderDefaults[providerTag].MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	llmClient, err := llm.New(providerTag, cfg.ProviderDefaults)
	if err != nil {
		return fmt.Errorf("initializing LLM client: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := mcpmanager.New()
	defer mgr.Close()
	if len(cfg.MCPServers) > 0 {
		servers := make([]types.MCPServerDescriptor, 0, len(cfg.MCPServers))
		for _, s := range cfg.MCPServers {
			servers = append(servers, s)
		}
		result := mgr.ConnectFromConfig(ctx, servers)
		for name, connErr := range result.Failed {
			fmt.Fprintf(os.Stderr, "mcp: failed to connect %q: %v\n", name, connErr)
		}
	}

	permMgr := permission.New(workDir, cfg.PermissionRules)
	store := sessionstore.New(paths.StoragePath())

	session, err := resolveSession(ctx, store, workDir, runSessionID)
	if err != nil {
		return err
	}

	systemPrompt, err := resolveSystemPrompt()
	if err != nil {
		return err
	}

	eng := agent.New(llmClient, mgr, permMgr, store, session, systemPrompt, modelID, maxTokens).
		WithDoomLoopDetector(permission.NewDoomLoopDetector()).
		WithMaxTurns(cfg.MaxTurns)

	fmt.Fprintf(os.Stderr, "session %s, model %s/%s\n\n", session.ID, providerTag, modelID)

	return drainToStdout(eng.SendMessage(ctx, message))
}

func resolveSession(ctx context.Context, store *sessionstore.Store, workDir, id string) (*types.Session, error) {
	if id != "" {
		return store.Load(ctx, id)
	}
	return store.Create(ctx, workDir)
}

func resolveSystemPrompt() (string, error) {
	if runSystemFile != "" {
		data, err := os.ReadFile(runSystemFile)
		if err != nil {
			return "", fmt.Errorf("reading system prompt file: %w", err)
		}
		return string(data), nil
	}
	if runSystem != "" {
		return runSystem, nil
	}
	return defaultSystemPrompt, nil
}

// drainToStdout consumes an Agent Engine event stream, printing text as
// it arrives and prompting on the terminal for any permission pause.
func drainToStdout(events <-chan agent.Event) error {
	reader := bufio.NewReader(os.Stdin)

	for ev := range events {
		switch v := ev.(type) {
		case agent.TextEvent:
			fmt.Print(v.Text)

		case agent.ToolStartedEvent:
			fmt.Fprintf(os.Stderr, "\n[tool] %s %v\n", v.Tool, v.Args)

		case agent.ToolFinishedEvent:
			if v.IsError {
				fmt.Fprintf(os.Stderr, "[tool] %s failed: %s\n", v.Tool, v.Output)
			} else {
				fmt.Fprintf(os.Stderr, "[tool] %s done\n", v.Tool)
			}

		case agent.PermissionAskEvent:
			scope := promptPermission(reader, v.Tool)
			v.Resolve <- scope

		case agent.ErrorEvent:
			fmt.Println()
			return fmt.Errorf("%s: %s", v.Kind, v.Message)

		case agent.DoneEvent:
			fmt.Println()
			if v.Cancelled {
				fmt.Fprintln(os.Stderr, "turn cancelled")
			}
			return nil
		}
	}
	return nil
}

func promptPermission(reader *bufio.Reader, tool string) agent.Resolution {
	fmt.Fprintf(os.Stderr, "\nallow tool %q? [y]es/[n]o/[s]ession/[a]lways: ", tool)
	line, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return agent.Resolution{Approve: true, Scope: types.ScopeOnce}
	case "s", "session":
		return agent.Resolution{Approve: true, Scope: types.ScopeSession}
	case "a", "always":
		return agent.Resolution{Approve: true, Scope: types.ScopeAlways}
	default:
		return agent.Resolution{Approve: false, Scope: types.ScopeOnce}
	}
}
