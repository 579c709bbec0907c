package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"iochunt/core"
	"iochunt/storage"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type seedEndpoint struct {
	ID       string `yaml:"id"`
	Hostname string `yaml:"hostname"`
	Online   bool   `yaml:"online"`
}

// seedFile is the layout accepted by `iochunt seed`
type seedFile struct {
	Endpoints []seedEndpoint            `yaml:"endpoints"`
	Inventory []storage.InventoryRecord `yaml:"inventory"`
	Logs      []storage.LogRecord       `yaml:"logs"`
}

// seedResult counts what was written
type seedResult struct {
	Endpoints int `json:"endpoints"`
	Files     int `json:"files"`
	Logs      int `json:"logs"`
}

func newSeedCmd(g *globalFlags) *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "seed <file.yaml|file.json>",
		Short: "Load endpoints, file inventory and logs for an organization",
		Long: `Load endpoint records into the stores hunts search. Logs go to the configured
log backend (sqlite, clickhouse or mongodb).

File layout:
  endpoints:
    - {id: ep-1, hostname: ws-finance-01, online: true}
  inventory:
    - {endpoint_id: ep-1, file_path: C:\Users\Public\invoice.exe, sha256: ...}
  logs:
    - {endpoint_id: ep-1, log_source: sysmon, message: "process start: invoice.exe"}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := requireOrg(org)
			if err != nil {
				return err
			}

			file, err := readSeedFile(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			app, cleanup, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer cleanup()

			var result seedResult
			for i, ep := range file.Endpoints {
				if err := app.Storage.Endpoints.UpsertEndpoint(ctx, &core.Endpoint{
					ID: ep.ID, OrgID: org, Hostname: ep.Hostname, Online: ep.Online,
				}); err != nil {
					return fmt.Errorf("endpoint %d: %w", i+1, err)
				}
				result.Endpoints++
			}
			for i := range file.Inventory {
				rec := &file.Inventory[i]
				rec.OrgID = org
				if err := app.Storage.Inventory.RecordFile(ctx, rec); err != nil {
					return fmt.Errorf("inventory entry %d: %w", i+1, err)
				}
				result.Files++
			}
			for i := range file.Logs {
				rec := &file.Logs[i]
				rec.OrgID = org
				if err := app.Storage.Logs.AppendLog(ctx, rec); err != nil {
					return fmt.Errorf("log entry %d: %w", i+1, err)
				}
				result.Logs++
			}

			if g.outputJSON {
				return outputAsJSON(cmd.OutOrStdout(), result)
			}
			if !g.quiet {
				successColor.Fprintf(cmd.OutOrStdout(), "✓ Seeded %d endpoint(s), %d file(s), %d log record(s) for %s\n",
					result.Endpoints, result.Files, result.Logs, org)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization ID (required)")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func readSeedFile(filename string) (*seedFile, error) {
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
		return nil, fmt.Errorf("file too large: maximum size is %d bytes, got %d bytes", maxImportFileSize, fileInfo.Size())
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filename), err)
	}
	return &file, nil
}
