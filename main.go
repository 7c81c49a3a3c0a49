package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"go.iain.rocks/repofleet/app/domain"
	"go.iain.rocks/repofleet/app/infra/credentials"
	gitexec "go.iain.rocks/repofleet/app/infra/git"
	"go.iain.rocks/repofleet/app/infra/git/repository_providers"
)

var conf = koanf.Conf{
	Delim:       ".",
	StrictMerge: true,
}
var k = koanf.NewWithConf(conf)

func main() {
	if err := runWithArgs(os.Args); err != nil {
		log.Fatal(err)
	}
}

// app is the per-invocation wiring: validated config, the provider
// registry and the masker primed with every resolved secret.
type app struct {
	config   domain.Config
	registry *domain.Registry
	masker   *credentials.Masker
}

func loadApp(configFile string) (*app, error) {
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	var config domain.Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store := credentials.NewConfigStore(config)
	registry, err := domain.NewRegistryFromConfig(config, store, repository_providers.NewProvider)
	if err != nil {
		return nil, err
	}

	return &app{config: config, registry: registry, masker: store.Masker()}, nil
}

func runWithArgs(args []string) error {
	cmd := &cli.Command{
		Name:  "repofleet",
		Usage: "discover and bulk-operate on repositories across git hosting providers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   ".repofleet.yaml",
				Usage:   "The config file to be used",
				Aliases: []string{"c"},
			},
		},
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			discoverCommand(),
			providersCommand(),
			bulkCommand("clone", "Clone every matching repository into the destination tree"),
			bulkCommand("pull", "Pull every matching repository checkout under the destination tree"),
			bulkCommand("status", "Report working-tree status for every matching checkout"),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return cmd.Run(ctx, args)
}

func discoverCommand() *cli.Command {
	return &cli.Command{
		Name:      "discover",
		Usage:     "List repositories matching an org/project/repo pattern",
		ArgsUsage: "PATTERN",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Only query the named provider"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Stop after N results"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_, pattern, providers, err := setup(c)
			if err != nil {
				return err
			}

			stream := domain.Discover(ctx, providers, pattern)
			limit := int(c.Int("limit"))

			count := 0
			for {
				if limit > 0 && count == limit {
					stream.Stop()
					break
				}
				h, ok := stream.Next(ctx)
				if !ok {
					break
				}
				if h.IsDisabled {
					fmt.Printf("%s (disabled)\n", h)
				} else {
					fmt.Println(h)
				}
				count++
			}

			logWarnings(stream.Warnings())
			return stream.Err()
		},
	}
}

func providersCommand() *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List the configured providers in configuration order",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := loadApp(c.String("config"))
			if err != nil {
				return err
			}
			for _, name := range a.registry.Names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func bulkCommand(name, usage string) *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "provider", Aliases: []string{"p"}, Usage: "Only query the named provider"},
		&cli.StringFlag{Name: "dest", Aliases: []string{"d"}, Value: ".", Usage: "Destination root for checkouts"},
		&cli.IntFlag{Name: "concurrency", Aliases: []string{"j"}, Usage: "Max units in flight (default: provider-informed)"},
		&cli.DurationFlag{Name: "timeout", Usage: "Cancel the batch after this duration"},
		&cli.BoolFlag{Name: "verbose-failures", Usage: "Print per-failure detail after the summary"},
	}
	switch name {
	case "clone":
		flags = append(flags,
			&cli.StringFlag{
				Name:  "update-mode",
				Value: string(domain.UpdateSkip),
				Usage: "What to do when the destination exists: skip, pull or force",
			},
			&cli.IntFlag{
				Name:  "depth",
				Usage: "Limit clone history to N commits (0 = full history)",
			})
	case "status":
		flags = append(flags, &cli.BoolFlag{
			Name:  "remote",
			Usage: "Fetch before reporting, to check against the remote",
		})
	}

	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "PATTERN",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			return runBulk(ctx, c, name)
		},
	}
}

func runBulk(ctx context.Context, c *cli.Command, name string) error {
	a, pattern, providers, err := setup(c)
	if err != nil {
		return err
	}

	git := gitexec.NewExecutor()

	var op domain.Operation
	dest := c.String("dest")
	switch name {
	case "clone":
		mode, err := domain.ParseUpdateMode(c.String("update-mode"))
		if err != nil {
			return err
		}
		op = domain.CloneOp(dest, mode)
		git.Depth = int(c.Int("depth"))
	case "pull":
		op = domain.PullOp(dest)
	case "status":
		op = domain.StatusOp(dest, c.Bool("remote"))
	}

	concurrency := int(c.Int("concurrency"))
	if concurrency == 0 {
		concurrency = a.registry.DefaultConcurrency(providers)
	}

	// A timeout is just cancellation on a deadline.
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	executor := &domain.Executor{
		Registry: a.registry,
		Git:      git,
		Mask:     a.masker.Mask,
		Progress: printProgress,
	}

	stream := domain.Discover(ctx, providers, pattern)
	report := executor.Run(ctx, stream, op, concurrency)

	logWarnings(stream.Warnings())
	fmt.Println(report.Summary())
	if c.Bool("verbose-failures") {
		for _, f := range report.Failures() {
			fmt.Printf("  failed %s: %s\n", f.Handle, f.Detail)
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}
	if failed := report.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d operations failed", failed, report.Total())
	}
	return nil
}

// setup loads config and resolves the pattern argument plus provider
// filter shared by every command.
func setup(c *cli.Command) (*app, domain.Pattern, []domain.RepositoryProvider, error) {
	raw := c.Args().First()
	if raw == "" {
		return nil, domain.Pattern{}, nil, fmt.Errorf("a PATTERN argument is required, e.g. 'myorg/*/*'")
	}
	pattern, err := domain.CompilePattern(raw)
	if err != nil {
		return nil, domain.Pattern{}, nil, err
	}

	a, err := loadApp(c.String("config"))
	if err != nil {
		return nil, domain.Pattern{}, nil, err
	}

	providers, err := a.registry.Select(c.String("provider"))
	if err != nil {
		return nil, domain.Pattern{}, nil, err
	}

	return a, pattern, providers, nil
}

func printProgress(res domain.OperationResult) {
	fmt.Printf("%-7s %s %s (%s)\n", res.Status, res.Handle, res.Detail, res.Duration.Round(time.Millisecond))
}

func logWarnings(warnings []domain.Warning) {
	for _, w := range warnings {
		slog.Warn("provider error during discovery", "provider", w.Provider, "err", w.Err)
	}
}
