// Command btcamcp exposes the btca CLI as MCP tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/deixis/btcamcp"
	"github.com/deixis/btcamcp/internal/btca"
	"github.com/deixis/btcamcp/internal/config"
	btcamcpmcp "github.com/deixis/btcamcp/internal/mcp"
	"github.com/deixis/btcamcp/internal/observe"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	slog.SetDefault(observe.NewLogger(os.Stderr, slog.LevelInfo))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "mcp":
		err = mcpMain(args)
	case "ask":
		err = askMain(args)
	case "model":
		err = modelMain(args)
	case "list":
		err = listMain(args)
	case "add":
		err = addMain(args)
	case "remove":
		err = removeMain(args)
	case "clear":
		err = clearMain(args)
	case "version":
		fmt.Println(btcamcp.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "btcamcp: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("btcamcp failed", "cmd", cmd, "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: btcamcp <command> [flags]

Commands:
  mcp         Start the MCP server
  ask         Ask a question about one or more resources
  model       Set the btca model provider and model
  list        List configured resources
  add         Add a git or local resource
  remove      Remove a resource
  clear       Clear all locally cached resources
  version     Print the version
  help        Show this help

Use "btcamcp <command> -h" for command-specific flags.`)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on address (e.g. :9091)")
	verbose := fs.Bool("v", false, "debug logging")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(btcamcpmcp.Instructions)
		return nil
	}
	if *verbose {
		slog.SetDefault(observe.NewLogger(os.Stderr, slog.LevelDebug))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: btcamcp.Version})
	if err != nil {
		return fmt.Errorf("initialising telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	client, err := newClient()
	if err != nil {
		return err
	}
	client.Metrics = observe.DefaultMetrics()

	server := btcamcpmcp.NewServer(client)

	g, gctx := errgroup.WithContext(ctx)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		g.Go(func() error { return listen(gctx, "metrics", *metricsAddr, mux) })
	}
	g.Go(func() error {
		if *httpAddr != "" {
			handler := mcpsdk.NewStreamableHTTPHandler(
				func(_ *http.Request) *mcpsdk.Server { return server },
				nil,
			)
			return listen(gctx, "mcp", *httpAddr, handler)
		}
		err := server.Run(gctx, &mcpsdk.StdioTransport{})
		// Stdin closing ends the session; stop the metrics server with it.
		stop()
		return err
	})
	return g.Wait()
}

// listen serves handler on addr until ctx is done.
func listen(ctx context.Context, name, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	slog.Info("listening", "server", name, "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s http server: %w", name, err)
	}
	return nil
}

// --- tool mirrors ---

func askMain(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	var resources stringSliceFlag
	fs.Var(&resources, "r", "resource name (repeatable)")
	question := fs.String("q", "", "question; defaults to the remaining arguments")
	_ = fs.Parse(args)

	q := *question
	if q == "" {
		q = strings.Join(fs.Args(), " ")
	}
	return runTool(func(ctx context.Context, c *btca.Client) (btca.Response, error) {
		return c.Ask(ctx, resources, q)
	})
}

func modelMain(args []string) error {
	fs := flag.NewFlagSet("model", flag.ExitOnError)
	provider := fs.String("provider", "", "model provider id")
	model := fs.String("model", "", "model name")
	_ = fs.Parse(args)

	return runTool(func(ctx context.Context, c *btca.Client) (btca.Response, error) {
		return c.SetModel(ctx, *provider, *model)
	})
}

func listMain(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	_ = fs.Parse(args)

	return runTool(func(ctx context.Context, c *btca.Client) (btca.Response, error) {
		return c.ListResources(ctx)
	})
}

func addMain(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	var req btca.AddRequest
	var searchPaths stringSliceFlag
	fs.StringVar(&req.Name, "n", "", "resource name")
	typ := fs.String("t", string(btca.GitResource), "resource type: git or local")
	fs.StringVar(&req.URL, "u", "", "git repository URL (git)")
	fs.StringVar(&req.Branch, "b", "", "git branch (git)")
	fs.StringVar(&req.Path, "path", "", "local filesystem path (local)")
	fs.Var(&searchPaths, "s", "subdirectory to focus search on (repeatable)")
	fs.StringVar(&req.Notes, "notes", "", "hints for the AI about this resource")
	_ = fs.Parse(args)

	req.Type = btca.ResourceType(*typ)
	req.SearchPaths = searchPaths
	return runTool(func(ctx context.Context, c *btca.Client) (btca.Response, error) {
		return c.AddResource(ctx, req)
	})
}

func removeMain(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	name := fs.String("name", "", "resource name; defaults to the first argument")
	_ = fs.Parse(args)

	n := *name
	if n == "" {
		n = fs.Arg(0)
	}
	return runTool(func(ctx context.Context, c *btca.Client) (btca.Response, error) {
		return c.RemoveResource(ctx, n)
	})
}

func clearMain(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	_ = fs.Parse(args)

	return runTool(func(ctx context.Context, c *btca.Client) (btca.Response, error) {
		return c.ClearCache(ctx)
	})
}

// runTool runs op with a client built from the local config, prints its
// result, and exits 1 if the request was rejected or btca failed.
func runTool(op func(context.Context, *btca.Client) (btca.Response, error)) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client, err := newClient()
	if err != nil {
		return err
	}

	resp, err := op(ctx, client)
	if err != nil {
		return err
	}
	if resp.Text != "" {
		fmt.Println(resp.Text)
	}
	if resp.Failed {
		stop()
		os.Exit(1)
	}
	return nil
}

// --- shared ---

// newClient builds a btca client from the configuration found for the
// current directory.
func newClient() (*btca.Client, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if loaded.Path != "" {
		slog.Debug("loaded config", "path", loaded.Path)
	}
	return loaded.Config.NewClient(workspace), nil
}
