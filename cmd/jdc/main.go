package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/jdc/internal/api"
	"github.com/pbaille/jdc/internal/apiclient"
	"github.com/pbaille/jdc/internal/config"
	"github.com/pbaille/jdc/internal/domain"
	"github.com/pbaille/jdc/internal/fetcher"
	"github.com/pbaille/jdc/internal/label"
	"github.com/pbaille/jdc/internal/llm"
	"github.com/pbaille/jdc/internal/logging"
	"github.com/pbaille/jdc/internal/session"
	"github.com/pbaille/jdc/internal/store"
	"github.com/pbaille/jdc/internal/stream"
	syncengine "github.com/pbaille/jdc/internal/sync"
	"github.com/pbaille/jdc/internal/workspace"
)

var (
	cfg       *config.Config
	serverURL string
	provider  string
)

func main() {
	cfg = config.Load()

	rootCmd := &cobra.Command{
		Use:   "jdc",
		Short: "Compare job descriptions with AI assistance",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", cfg.ServerURL, "backend server URL")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", cfg.DefaultProvider, "LLM provider (openai or anthropic)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(workspacesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DBPath)
}

func buildRegistry() *llm.Registry {
	registry := llm.NewRegistry()
	if cfg.OpenAIKey != "" {
		registry.Register(domain.ProviderOpenAI, llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIChatModel, cfg.OpenAILabel))
	}
	if cfg.AnthropicKey != "" {
		registry.Register(domain.ProviderAnthropic, llm.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicChatModel, cfg.AnthropicLabel))
	}
	return registry
}

// client bundles the editor-core pieces a command needs to talk to a
// running server.
type client struct {
	store   *workspace.Store
	session *session.Session
	engine  *syncengine.Engine
	labels  *label.Coordinator
	manager *workspace.Manager
	api     *apiclient.Client
	status  *syncengine.Status
}

func buildClient() (*client, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logger := logging.New(cfg.Debug)

	ws := workspace.NewStore()
	backend := apiclient.New(serverURL)
	sess := session.New(stream.NewClient(serverURL), ws, logger)
	sess.SetProvider(domain.ParseProvider(provider))

	status := syncengine.NewStatus()
	engine := syncengine.NewEngine(ws, backend, status, logger)
	engine.SetDelay(cfg.SaveDebounce)
	ws.OnChange(engine.NotifyChange)

	labels := label.NewCoordinator(backend, ws, func() domain.Provider {
		return domain.ParseProvider(provider)
	}, logger)
	labels.SetDelay(cfg.LabelDebounce)

	prefs := workspace.NewPrefs(cfg.DataDir)
	manager := workspace.NewManager(ws, sess, engine, backend, prefs, logger)

	return &client{
		store:   ws,
		session: sess,
		engine:  engine,
		labels:  labels,
		manager: manager,
		api:     backend,
		status:  status,
	}, nil
}

func (c *client) stop() {
	c.labels.Stop()
	c.engine.Stop()
}

// addJD appends a JD to the active workspace, fetching URLs and kicking
// off debounced labeling. The sync engine picks the change up through
// the store's observer.
func (c *client) addJD(ctx context.Context, input string) (string, error) {
	text := input
	if fetcher.IsURL(input) {
		fetched, err := fetcher.New().FetchText(ctx, input)
		if err != nil {
			return "", fmt.Errorf("fetch posting: %w", err)
		}
		text = fetched
	}

	id := c.store.AddItem()
	c.store.UpdateItemText(id, text)
	c.labels.Trigger(id, text)
	return id, nil
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			// Note: don't defer s.Close() as server runs indefinitely

			server := api.New(s, buildRegistry(), addr, logging.New(cfg.Debug))
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", cfg.ListenAddr, "server address")
	return cmd
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat about the active workspace's job descriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := buildClient()
			if err != nil {
				return err
			}
			defer c.stop()

			if err := c.manager.Init(ctx); err != nil {
				return err
			}

			c.session.SetTokenSink(func(tok string) { fmt.Print(tok) })

			fmt.Printf("Workspace: %s\n", c.store.WorkspaceName())
			fmt.Println("Type a question, /add <text or URL> to add a job, /jobs to list, /quit to exit.")

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "/quit" || line == "/exit" {
					break
				}
				if line == "" {
					continue
				}

				if rest, ok := strings.CutPrefix(line, "/add "); ok {
					if _, err := c.addJD(ctx, strings.TrimSpace(rest)); err != nil {
						fmt.Printf("(add failed: %v)\n", err)
						continue
					}
					fmt.Printf("Added (%d items)\n", len(c.store.Items()))
					continue
				}
				if line == "/jobs" {
					printJobs(c.store.Items())
					continue
				}

				if !c.session.SendMessage(ctx, line) {
					continue
				}
				fmt.Println()
				if msg := c.session.Err(); msg != "" {
					fmt.Printf("(error: %s)\n", msg)
				}
			}
			return scanner.Err()
		},
	}
}

func addCmd() *cobra.Command {
	var noLabel bool

	cmd := &cobra.Command{
		Use:   "add [text or URL]",
		Short: "Add a job description to the active workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input := strings.Join(args, " ")

			text := input
			if fetcher.IsURL(input) {
				fmt.Print("Fetching... ")
				fetched, err := fetcher.New().FetchText(ctx, input)
				if err != nil {
					return fmt.Errorf("fetch posting: %w", err)
				}
				fmt.Println("done")
				text = fetched
			}

			c, err := buildClient()
			if err != nil {
				return err
			}
			defer c.stop()

			if err := c.manager.Init(ctx); err != nil {
				return err
			}

			id := c.store.AddItem()
			c.store.UpdateItemText(id, text)

			if !noLabel {
				result, err := c.api.ExtractLabel(ctx, text, domain.ParseProvider(provider))
				if err != nil {
					fmt.Printf("(labeling skipped: %v)\n", err)
				} else {
					c.store.SetLabel(id, result.Title, result.Company)
					fmt.Printf("Labeled: %s\n", formatLabel(result))
				}
			}

			if err := c.engine.Flush(ctx); err != nil {
				return fmt.Errorf("save workspace: %w", err)
			}
			fmt.Printf("Added to workspace %q (%d items)\n", c.store.WorkspaceName(), len(c.store.Items()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noLabel, "no-label", false, "skip automatic title/company labeling")
	return cmd
}

func printJobs(items []domain.JDItem) {
	for i, it := range items {
		marker := " "
		if it.IsMuted {
			marker = "M"
		}
		fmt.Printf("%d%s %-30s %s\n", i+1, marker, itemLabel(it), truncate(it.Text, 50))
	}
}

func itemLabel(it domain.JDItem) string {
	if it.IsLabelLoading {
		return "(labeling...)"
	}
	if it.LabelTitle == nil {
		return "(unlabeled)"
	}
	if it.LabelCompany != nil {
		return *it.LabelTitle + " @ " + *it.LabelCompany
	}
	return *it.LabelTitle
}

func formatLabel(r *domain.LabelResult) string {
	title := "Unknown role"
	if r.Title != nil {
		title = *r.Title
	}
	if r.Company != nil {
		return title + " @ " + *r.Company
	}
	return title
}

func workspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Manage workspaces",
	}
	cmd.AddCommand(workspacesListCmd())
	cmd.AddCommand(workspacesNewCmd())
	cmd.AddCommand(workspacesRenameCmd())
	cmd.AddCommand(workspacesDeleteCmd())
	cmd.AddCommand(workspacesUseCmd())
	return cmd
}

func workspacesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := apiclient.New(serverURL)
			sets, err := backend.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}

			if len(sets) == 0 {
				fmt.Println("No workspaces yet. Use 'jdc add' to create one.")
				return nil
			}

			active, _ := workspace.NewPrefs(cfg.DataDir).ActiveWorkspace()
			for _, ws := range sets {
				marker := " "
				if ws.ID == active {
					marker = "*"
				}
				fmt.Printf("%s %s  %-30s %d items\n", marker, ws.ID[:8], truncate(ws.Name, 30), ws.ItemCount)
			}
			return nil
		},
	}
}

func workspacesNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [name]",
		Short: "Create a workspace and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")

			c, err := buildClient()
			if err != nil {
				return err
			}
			defer c.stop()

			if err := c.manager.Init(cmd.Context()); err != nil {
				return err
			}
			detail, err := c.manager.CreateAndSwitch(cmd.Context(), name)
			if err != nil {
				return err
			}
			fmt.Printf("Created workspace %q (%s)\n", detail.Name, detail.ID[:8])
			return nil
		},
	}
}

func workspacesRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [id-prefix] [name]",
		Short: "Rename a workspace",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := apiclient.New(serverURL)
			id, err := resolveWorkspace(cmd.Context(), backend, args[0])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")

			detail, err := backend.RenameWorkspace(cmd.Context(), id, name)
			if err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %q\n", detail.ID[:8], detail.Name)
			return nil
		},
	}
}

func workspacesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id-prefix]",
		Short: "Delete a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := apiclient.New(serverURL)
			id, err := resolveWorkspace(cmd.Context(), backend, args[0])
			if err != nil {
				return err
			}
			if err := backend.DeleteWorkspace(cmd.Context(), id); err != nil {
				return err
			}

			prefs := workspace.NewPrefs(cfg.DataDir)
			if active, _ := prefs.ActiveWorkspace(); active == id {
				if err := prefs.Clear(); err != nil {
					fmt.Printf("(warning: couldn't clear active workspace: %v)\n", err)
				}
			}
			fmt.Printf("Deleted %s\n", id[:8])
			return nil
		},
	}
}

func workspacesUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use [id-prefix]",
		Short: "Make a workspace active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildClient()
			if err != nil {
				return err
			}
			defer c.stop()

			id, err := resolveWorkspace(cmd.Context(), c.api, args[0])
			if err != nil {
				return err
			}
			if err := c.manager.Init(cmd.Context()); err != nil {
				return err
			}
			if err := c.manager.Switch(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("Active workspace: %q (%d items)\n", c.store.WorkspaceName(), len(c.store.Items()))
			return nil
		},
	}
}

// resolveWorkspace finds a workspace by id prefix.
func resolveWorkspace(ctx context.Context, backend *apiclient.Client, prefix string) (string, error) {
	sets, err := backend.ListWorkspaces(ctx)
	if err != nil {
		return "", err
	}
	for _, ws := range sets {
		if strings.HasPrefix(ws.ID, prefix) {
			return ws.ID, nil
		}
	}
	return "", fmt.Errorf("workspace not found: %s", prefix)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
