package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"parcel/internal/cli/ui/styles"
	"parcel/internal/config"
	"parcel/internal/querycache"
	"parcel/internal/registry"
)

func newQueryCmd(configPath *string) *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "query <namespace>/<name>",
		Short: "Look up a published package",
		Long: `Looks up a package in the registry. Results are cached locally;
a publish invalidates the cache so lookups never return pre-push state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, ok := strings.Cut(args[0], "/")
			if !ok || namespace == "" || name == "" {
				return fmt.Errorf("package must be given as namespace/name, got %q", args[0])
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			store := querycache.New(cfg.Cache.Dir)
			cacheKey := "pkg:" + args[0]

			var pkg registry.PackageSummary
			if !noCache && store.Get(cacheKey, &pkg) {
				log.Debug("Query served from cache", "package", args[0])
				printPackage(&pkg, true)
				return nil
			}

			client := registry.NewClient(cfg.Registry.URL, registry.WithToken(cfg.ResolveToken()))
			result, err := client.GetPackage(cmd.Context(), namespace, name)
			if err != nil {
				return fmt.Errorf("package lookup failed: %w", err)
			}

			if err := store.Set(cacheKey, result); err != nil {
				log.Warn("Unable to cache query result", "error", err)
			}

			printPackage(result, false)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the local query cache")

	return cmd
}

func printPackage(pkg *registry.PackageSummary, cached bool) {
	visibility := "public"
	if pkg.Private {
		visibility = "private"
	}

	fmt.Println(styles.Theme.Title.Render(pkg.Namespace + "/" + pkg.Name))
	fmt.Printf("  latest:  %s\n", pkg.Latest)
	fmt.Printf("  hash:    %s\n", pkg.Hash)
	fmt.Printf("  access:  %s\n", visibility)
	if cached {
		fmt.Println(styles.Theme.Muted.Render("  (cached result)"))
	}
}
