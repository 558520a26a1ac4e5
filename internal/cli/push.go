package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"parcel/internal/cli/ui/components"
	"parcel/internal/cli/ui/styles"
	"parcel/internal/config"
	"parcel/internal/manifest"
	"parcel/internal/publish"
	"parcel/internal/registry"
)

func newPushCmd(configPath *string) *cobra.Command {
	var (
		dryRun         bool
		quiet          bool
		namespace      string
		timeout        time.Duration
		bump           bool
		nonInteractive bool
		waitMode       string
	)

	cmd := &cobra.Command{
		Use:   "push [path]",
		Short: "Push a package to the registry",
		Long: `Builds the package at the given path (default: current directory)
and pushes it to the registry. The pushed package is addressed by its
content hash; content already present in the registry is never uploaded
again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			// Flag left at its default tracks whether stdin is a terminal.
			if !cmd.Flags().Changed("non-interactive") {
				nonInteractive = !isatty.IsTerminal(os.Stdin.Fd())
			}

			wait, err := publish.ParseWaitCondition(waitMode)
			if err != nil {
				return err
			}

			return runPush(cmd, pushParams{
				configPath:     *configPath,
				path:           path,
				namespace:      namespace,
				dryRun:         dryRun,
				quiet:          quiet,
				bump:           bump,
				nonInteractive: nonInteractive,
				wait:           wait,
				timeout:        timeout,
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decide what would be pushed without sending anything")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress all non-error output")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Override the namespace to push to")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for each individual registry query")
	cmd.Flags().BoolVar(&bump, "bump", false, "Bump the manifest's patch version before building")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "Do not prompt for user input (default: true when stdin is not a terminal)")
	cmd.Flags().StringVar(&waitMode, "wait", "none", "Wait for the release to be available: none, container, or all")
	cmd.Flags().Lookup("wait").NoOptDefVal = "container"

	return cmd
}

type pushParams struct {
	configPath     string
	path           string
	namespace      string
	dryRun         bool
	quiet          bool
	bump           bool
	nonInteractive bool
	wait           publish.WaitCondition
	timeout        time.Duration
}

func runPush(cmd *cobra.Command, p pushParams) error {
	if p.quiet {
		log.SetLevel(log.ErrorLevel)
	}

	cfg, err := config.Load(p.configPath)
	if err != nil {
		return err
	}

	manifestPath, m, err := manifest.Load(p.path)
	if err != nil {
		return err
	}

	if p.bump {
		version, err := manifest.Bump(manifestPath)
		if err != nil {
			return err
		}
		log.Info("Bumped package version", "version", version)
		if _, m, err = manifest.Load(manifestPath); err != nil {
			return err
		}
	}

	client := registry.NewClient(cfg.Registry.URL,
		registry.WithToken(cfg.ResolveToken()),
		registry.WithTimeout(p.timeout),
	)

	spin := components.NewSpinner(components.WithQuiet(p.quiet))
	orch := publish.New(client,
		publish.WithProgress(spin),
		publish.WithPrompt(namespacePrompt{}),
	)

	result, err := orch.Publish(cmd.Context(), manifestPath, m, publish.Options{
		Namespace:      p.namespace,
		DryRun:         p.dryRun,
		NonInteractive: p.nonInteractive,
		Wait:           p.wait,
		Timeout:        p.timeout,
		CacheDir:       cfg.Cache.Dir,
	})
	if err != nil {
		return err
	}

	if result.WaitErr != nil {
		log.Warn("Release was pushed but is not yet available", "error", result.WaitErr)
	}

	if !p.quiet {
		printPushEpilogue(os.Stderr, m, result)
	}

	return nil
}

func printPushEpilogue(w io.Writer, m *manifest.Manifest, result *publish.Result) {
	switch {
	case result.DryRun:
		fmt.Fprintln(w, styles.RenderInfo("Dry-run: nothing was sent to the registry"))
	case result.AlreadyExists:
		fmt.Fprintln(w, styles.RenderInfo("Package was already in the registry, no push needed"))
	case result.Pushed:
		line := fmt.Sprintf("Published to namespace %s.", styles.Theme.Bold.Render(result.Namespace))
		if name, named := m.Name(); named {
			line += fmt.Sprintf(" Look it up with %s",
				styles.Theme.Bold.Render(fmt.Sprintf("parcel query %s", name)))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Package content hash: %s\n", styles.Theme.Bold.Render(result.Hash.String()))
}
