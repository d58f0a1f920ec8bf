package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/toolloop/internal/config"
)

// version is set via ldflags at build time by GoReleaser.
// e.g. -ldflags "-X main.version=1.2.3"
var version = "dev"

// runFlags are accepted both by "run" and by the implicit run of the root command.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "provider",
			Usage: "LLM provider: openai, groq, anthropic, gemini",
		},
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model name (default: the provider's configured model)",
		},
		&cli.IntFlag{
			Name:    "max-iterations",
			Aliases: []string{"n"},
			Usage:   "Iteration budget (default: agent.max_iterations)",
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Watch the run in a full-screen view (terminal only)",
		},
		&cli.BoolFlag{
			Name:  "no-record",
			Usage: "Do not record the run in the state database",
		},
	}
}

// newApp creates the CLI application with all flags and commands.
func newApp() *cli.Command {
	return &cli.Command{
		Name:        "toolloop",
		Usage:       "Tool-using LLM agent loop",
		Version:     version,
		UsageText:   "toolloop [global options] [command] [arguments...]",
		Description: "toolloop answers a prompt by letting a model call tools until it produces an ANSWER",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.DefaultPath,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log every loop step to stderr",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Print only the answer (mutually exclusive with --json and --tui)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output JSON lines (mutually exclusive with --quiet and --tui)",
			},
		}, runFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			flagCount := 0
			for _, name := range []string{"quiet", "json", "tui"} {
				if cmd.Bool(name) {
					flagCount++
				}
			}
			if flagCount > 1 {
				return ctx, fmt.Errorf("flags --quiet, --json, and --tui are mutually exclusive")
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Answer a prompt with the agent loop",
				ArgsUsage: "<prompt>",
				Flags:     runFlags(),
				Action:    cmdRun,
			},
			{
				Name:      "ask",
				Usage:     "Send a single prompt to the model, without tools",
				ArgsUsage: "<prompt>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "provider", Usage: "LLM provider: openai, groq, anthropic, gemini"},
					&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model name"},
					&cli.StringFlag{Name: "system", Aliases: []string{"s"}, Usage: "System prompt"},
					&cli.FloatFlag{Name: "temperature", Aliases: []string{"t"}, Usage: "Sampling temperature"},
				},
				Action: cmdAsk,
			},
			{
				Name:   "tools",
				Usage:  "List the registered tools",
				Action: cmdTools,
			},
			{
				Name:      "tool",
				Usage:     "Invoke a tool directly",
				ArgsUsage: "<name> <argument>",
				Action:    cmdTool,
			},
			{
				Name:  "runs",
				Usage: "List recorded runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum runs to show"},
				},
				Action: cmdRuns,
			},
			{
				Name:      "show",
				Usage:     "Show the transcript of a recorded run",
				ArgsUsage: "<run-id>",
				Action:    cmdShow,
			},
			{
				Name:   "init",
				Usage:  "Write a default config file and state directory",
				Action: cmdInit,
			},
			{
				Name:   "config",
				Usage:  "Show current configuration",
				Action: cmdConfig,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// Default action: treat remaining args as the prompt (implicit run)
			if cmd.Args().Len() == 0 {
				return fmt.Errorf("no prompt given. Usage: toolloop [run] <prompt>")
			}
			return cmdRun(ctx, cmd)
		},
	}
}
