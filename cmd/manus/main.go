// Command manus reads a task from the command line or stdin and runs the
// tool-calling agent on it.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/martinemde/manus/agentloop"
	"github.com/martinemde/manus/config"
	"github.com/martinemde/manus/tool"
	"github.com/martinemde/manus/unifiedllm"
)

// newProvider builds the model backend. Tests replace it.
var newProvider = func(cfg *config.Config) (unifiedllm.ProviderAdapter, error) {
	return unifiedllm.NewGollmAdapter(cfg.LLM.Provider,
		unifiedllm.WithAPIKey(cfg.LLM.APIKey),
		unifiedllm.WithModel(cfg.LLM.Model),
		unifiedllm.WithMaxTokens(cfg.LLM.MaxTokens),
		unifiedllm.WithTemperature(cfg.LLM.Temperature),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Logs go to stderr; the agent's output goes
// to stdout. With no positional arguments the prompt is read from stdin.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var words []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case strings.HasPrefix(args[i], "-"):
			return fmt.Errorf("unknown flag: %s", args[i])
		default:
			words = append(words, args[i])
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.LogLevel, stderr)
	if err != nil {
		return err
	}

	prompt := strings.Join(words, " ")
	if len(words) == 0 {
		fmt.Fprint(stdout, "Enter your prompt: ")
		prompt, err = readPrompt(stdin)
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
	}
	if strings.TrimSpace(prompt) == "" {
		logger.Warn().Msg("Empty prompt provided.")
		return nil
	}

	agent, cleanup, err := buildAgent(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Warn().Msg("Processing your request...")
	start := time.Now()
	out, err := agent.Run(ctx, prompt)
	if out != "" {
		fmt.Fprintln(stdout, out)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("Operation interrupted.")
			return nil
		}
		return fmt.Errorf("run: %w", err)
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("Request processing completed.")
	return nil
}

// buildAgent wires configuration, tools, and the model client into an
// agent. The returned cleanup closes the client and event stream.
func buildAgent(cfg *config.Config, logger zerolog.Logger) (*agentloop.Agent, func(), error) {
	ws, err := tool.NewWorkspace(cfg.Workspace.Root)
	if err != nil {
		return nil, nil, err
	}

	registry, browser, err := tool.NewDefaultRegistry(ws, tool.Options{
		ShellTimeout:  cfg.Tools.ShellTimeout,
		PythonTimeout: cfg.Tools.PythonTimeout,
		PythonBinary:  cfg.Tools.PythonBinary,
		Browser: tool.BrowserOptions{
			Timeout:         cfg.Browser.Timeout,
			UserAgent:       cfg.Browser.UserAgent,
			MaxContentChars: cfg.Browser.MaxContentChars,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build tools: %w", err)
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	policy := unifiedllm.DefaultRetryPolicy()
	policy.MaxRetries = cfg.LLM.MaxRetries
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying model request")
	}

	client := unifiedllm.NewClient(
		unifiedllm.WithProvider(provider.Name(), provider),
		unifiedllm.WithDefaultModel(cfg.LLM.Model),
		unifiedllm.WithSampling(cfg.LLM.Temperature, cfg.LLM.MaxTokens),
		unifiedllm.WithMiddleware(unifiedllm.RetryMiddleware(policy)),
	)

	agent, err := agentloop.NewAgent(client, registry,
		agentloop.WithName(cfg.Agent.Name),
		agentloop.WithLogger(logger),
		agentloop.WithBrowser(browser),
		agentloop.WithSystemPrompt(agentloop.DefaultSystemPrompt(ws.Root())),
		agentloop.WithConfig(agentConfig(cfg)),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	cleanup := func() {
		agent.Close()
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("close model client")
		}
	}
	return agent, cleanup, nil
}

func agentConfig(cfg *config.Config) agentloop.AgentConfig {
	ac := agentloop.DefaultAgentConfig()
	ac.MaxSteps = cfg.Agent.MaxSteps
	ac.MaxObserve = cfg.Agent.MaxObserve
	ac.BrowserWindow = cfg.Agent.BrowserWindow
	ac.SummaryWindow = cfg.Agent.SummaryWindow
	ac.SummarySnippet = cfg.Agent.SummarySnippet
	ac.MaxContextMessages = cfg.Agent.MaxContextMessages
	ac.StallThreshold = cfg.Agent.StallThreshold
	ac.DuplicateThreshold = cfg.Agent.DuplicateThreshold
	ac.CleanupTimeout = cfg.Agent.CleanupTimeout
	return ac
}

func readPrompt(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printUsage(w io.Writer) error {
	_, err := fmt.Fprint(w, `Usage: manus [-config path] [prompt...]

Runs the agent on prompt. Without a prompt, one line is read from stdin.

Configuration is read from config.yaml in the current directory or
~/.config/manus, and MANUS_* environment variables (e.g. MANUS_LLM_PROVIDER).
`)
	return err
}
