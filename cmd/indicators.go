package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"iochunt/core"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// indicatorFileEntry is one indicator in an import file
type indicatorFileEntry struct {
	Value       string `yaml:"value"`
	Kind        string `yaml:"kind"`
	Severity    string `yaml:"severity"`
	Source      string `yaml:"source"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

// indicatorFile is the import file layout. JSON files use the same shape.
type indicatorFile struct {
	Indicators []indicatorFileEntry `yaml:"indicators"`
}

// importResult summarizes an import run
type importResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Invalid int      `json:"invalid"`
	Errors  []string `json:"errors,omitempty"`
}

func newIndicatorsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "indicators",
		Aliases: []string{"ioc", "iocs"},
		Short:   "Manage indicators of compromise",
	}
	cmd.AddCommand(newIndicatorsImportCmd(g))
	cmd.AddCommand(newIndicatorsListCmd(g))
	return cmd
}

// readIndicatorFile loads and parses a YAML or JSON import file
func readIndicatorFile(filename string) (*indicatorFile, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported file type %q (expected .yaml, .yml or .json)", filepath.Ext(filename))
	}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.Size() > maxImportFileSize {
		return nil, fmt.Errorf("file too large: maximum size is %d bytes (%d MB), got %d bytes",
			maxImportFileSize, maxImportFileSize/(1024*1024), fileInfo.Size())
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// YAML is a superset of JSON, so one decoder serves both formats
	var file indicatorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filename), err)
	}
	return &file, nil
}

// buildIndicators turns file entries into indicators, collecting per-entry errors
func buildIndicators(org, createdBy string, entries []indicatorFileEntry) ([]*core.Indicator, []string) {
	inds := make([]*core.Indicator, 0, len(entries))
	var errs []string

	for i, e := range entries {
		ind, err := core.NewIndicator(org, e.Value, core.IndicatorKind(strings.TrimSpace(e.Kind)), e.Source, createdBy)
		if err != nil {
			errs = append(errs, fmt.Sprintf("entry %d: %v", i+1, err))
			continue
		}
		if e.Severity != "" {
			ind.Severity = core.Severity(strings.ToLower(strings.TrimSpace(e.Severity)))
		}
		ind.Description = e.Description
		if e.Active != nil {
			ind.IsActive = *e.Active
		}
		if err := ind.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("entry %d: %v", i+1, err))
			continue
		}
		inds = append(inds, ind)
	}
	return inds, errs
}

func newIndicatorsImportCmd(g *globalFlags) *cobra.Command {
	var org, createdBy string

	cmd := &cobra.Command{
		Use:   "import <file.yaml|file.json>",
		Short: "Import indicators from a YAML or JSON file",
		Long: `Import indicators for an organization. Values are classified unless the entry
names a kind. Values that already exist for the organization are skipped.

File layout:
  indicators:
    - value: 44d88612fea8a8f36de82e1278abb02f
      severity: high
      source: vendor-report
    - value: C:\Windows\Temp\evil.exe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := requireOrg(org)
			if err != nil {
				return err
			}

			file, err := readIndicatorFile(args[0])
			if err != nil {
				return err
			}
			if len(file.Indicators) == 0 {
				return fmt.Errorf("no indicators found in %s", filepath.Base(args[0]))
			}

			inds, errs := buildIndicators(org, createdBy, file.Indicators)
			result := importResult{Invalid: len(errs), Errors: errs}

			if len(inds) > 0 {
				ctx, cancel := commandContext(cmd)
				defer cancel()

				app, cleanup, err := openApp(ctx, g)
				if err != nil {
					return err
				}
				defer cleanup()

				result.Created, result.Skipped, err = app.Storage.Indicators.BulkCreateIndicators(ctx, org, inds)
				if err != nil {
					return fmt.Errorf("failed to import indicators: %w", err)
				}
			}

			if g.outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), result)
			}
			renderImportResult(cmd.OutOrStdout(), result, g.quiet)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization ID (required)")
	cmd.Flags().StringVar(&createdBy, "created-by", "cli", "Recorded as the indicators' creator")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func newIndicatorsListCmd(g *globalFlags) *cobra.Command {
	var (
		org        string
		activeOnly bool
		kind       string
		search     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List indicators",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := requireOrg(org)
			if err != nil {
				return err
			}
			filters := &core.IndicatorFilters{ActiveOnly: activeOnly, Search: search, Limit: limit}
			if kind != "" {
				filters.Kind = core.IndicatorKind(kind)
				if !filters.Kind.IsValid() {
					return fmt.Errorf("invalid --kind %q", kind)
				}
			}
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			app, cleanup, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer cleanup()

			inds, total, err := app.Storage.Indicators.ListIndicators(ctx, org, filters)
			if err != nil {
				return fmt.Errorf("failed to list indicators: %w", err)
			}

			if g.outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), map[string]interface{}{"items": inds, "total": total})
			}
			renderIndicatorsTable(cmd.OutOrStdout(), inds, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization ID (required)")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only active indicators")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind (file_hash, file_path, file_name, process_name)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive value substring")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}
