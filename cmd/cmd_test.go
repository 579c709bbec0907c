package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"iochunt/core"
	"iochunt/threat"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testOrg    = "org-cli"
	testSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

type cliHarness struct {
	dir    string
	config string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf("data_paths:\n  data_dir: %s\n", filepath.Join(dir, "data"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return &cliHarness{dir: dir, config: path}
}

// run executes the CLI with --config, --quiet and --no-color prepended
func (h *cliHarness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", h.config, "--quiet", "--no-color"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *cliHarness) runJSON(t *testing.T, dst interface{}, args ...string) {
	t.Helper()
	out, err := h.run(t, append([]string{"--json"}, args...)...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), dst), out)
}

func (h *cliHarness) writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func (h *cliHarness) seed(t *testing.T) {
	t.Helper()
	path := h.writeFile(t, "seed.yaml", fmt.Sprintf(`endpoints:
  - {id: ep-A, hostname: ws-a, online: true}
  - {id: ep-B, hostname: ws-b}
inventory:
  - endpoint_id: ep-A
    file_path: 'C:\Windows\System32\powershell.exe'
    sha256: %s
  - endpoint_id: ep-B
    file_path: /tmp/payload.bin
    sha256: %s
logs:
  - endpoint_id: ep-B
    log_source: sysmon
    message: "process start: PowerShell.exe -enc AAAA"
    event_time: 2026-01-02T03:04:05Z
`, testSHA256, strings.ToUpper(testSHA256)))

	var res seedResult
	h.runJSON(t, &res, "seed", path, "--org", testOrg)
	assert.Equal(t, seedResult{Endpoints: 2, Files: 2, Logs: 1}, res)
}

func findCommand(root *cobra.Command, path ...string) *cobra.Command {
	cmd, _, err := root.Find(path)
	if err != nil {
		return nil
	}
	return cmd
}

func TestRootCommandStructure(t *testing.T) {
	root := NewRootCmd()
	for _, flag := range []string{"config", "json", "no-color", "quiet"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}

	for _, path := range [][]string{
		{"serve"}, {"classify"}, {"search"}, {"seed"},
		{"indicators", "import"}, {"indicators", "list"},
		{"hunt", "run"}, {"hunt", "show"},
	} {
		cmd := findCommand(root, path...)
		require.NotNil(t, cmd, strings.Join(path, " "))
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	run := findCommand(root, "hunt", "run")
	for _, flag := range []string{"org", "name", "indicator", "description"} {
		assert.NotNil(t, run.Flags().Lookup(flag), flag)
	}
}

func TestClassifyCmd(t *testing.T) {
	h := newCLIHarness(t)

	var rows []classifiedValue
	h.runJSON(t, &rows, "classify", testSHA256, `C:\Temp\evil.exe`, "evil.dll", "mimikatz")
	require.Len(t, rows, 4)
	assert.Equal(t, core.IndicatorKindFileHash, rows[0].Kind)
	assert.Equal(t, core.HashAlgorithmSHA256, rows[0].HashAlgorithm)
	assert.Equal(t, core.IndicatorKindFilePath, rows[1].Kind)
	assert.Equal(t, core.IndicatorKindFileName, rows[2].Kind)
	assert.Equal(t, core.IndicatorKindProcessName, rows[3].Kind)

	out, err := h.run(t, "classify", "evil.dll")
	require.NoError(t, err)
	assert.Contains(t, out, "file_name")

	_, err = h.run(t, "classify", "  ")
	assert.Error(t, err)
	_, err = h.run(t, "classify")
	assert.Error(t, err)
}

func TestIndicatorsImportAndList(t *testing.T) {
	h := newCLIHarness(t)
	path := h.writeFile(t, "iocs.yaml", fmt.Sprintf(`indicators:
  - value: %s
    severity: high
    source: vendor
  - value: powershell.exe
    active: false
  - value: "   "
  - value: evil.dll
    severity: extreme
  - value: mimikatz
    kind: file_name
`, testSHA256))

	var res importResult
	h.runJSON(t, &res, "indicators", "import", path, "--org", testOrg)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.Invalid)
	assert.Len(t, res.Errors, 2)

	// Re-importing skips the duplicates
	h.runJSON(t, &res, "indicators", "import", path, "--org", testOrg)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 3, res.Skipped)

	var page struct {
		Items []*core.Indicator `json:"items"`
		Total int64             `json:"total"`
	}
	h.runJSON(t, &page, "indicators", "list", "--org", testOrg)
	assert.Equal(t, int64(3), page.Total)

	h.runJSON(t, &page, "indicators", "list", "--org", testOrg, "--active")
	assert.Equal(t, int64(2), page.Total)
	for _, ind := range page.Items {
		assert.True(t, ind.IsActive)
		if ind.Value == "mimikatz" {
			assert.Equal(t, core.IndicatorKindFileName, ind.Kind, "explicit kind overrides classification")
		}
	}

	h.runJSON(t, &page, "indicators", "list", "--org", "other-org")
	assert.Zero(t, page.Total)

	_, err := h.run(t, "indicators", "list", "--org", testOrg, "--kind", "ip")
	assert.Error(t, err)
}

func TestIndicatorsImport_JSONFile(t *testing.T) {
	h := newCLIHarness(t)
	path := h.writeFile(t, "iocs.json", `{"indicators": [{"value": "evil.dll", "severity": "critical"}]}`)

	var res importResult
	h.runJSON(t, &res, "indicators", "import", path, "--org", testOrg)
	assert.Equal(t, 1, res.Created)
}

func TestIndicatorsImport_Errors(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "indicators", "import", h.writeFile(t, "iocs.txt", "x"), "--org", testOrg)
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = h.run(t, "indicators", "import", h.writeFile(t, "empty.yaml", "indicators: []\n"), "--org", testOrg)
	assert.ErrorContains(t, err, "no indicators")

	_, err = h.run(t, "indicators", "import", h.writeFile(t, "bad.yaml", "indicators: [\n"), "--org", testOrg)
	assert.ErrorContains(t, err, "failed to parse")

	_, err = h.run(t, "indicators", "import", filepath.Join(h.dir, "missing.yaml"), "--org", testOrg)
	assert.Error(t, err)

	_, err = h.run(t, "indicators", "import", h.writeFile(t, "ok.yaml", "indicators: [{value: a.exe}]\n"), "--org", "  ")
	assert.ErrorContains(t, err, "--org")
}

func TestHuntRunAndShow(t *testing.T) {
	h := newCLIHarness(t)
	h.seed(t)
	h.writeFile(t, "iocs.yaml", fmt.Sprintf("indicators:\n  - value: %s\n  - value: powershell.exe\n", testSHA256))
	var imp importResult
	h.runJSON(t, &imp, "indicators", "import", filepath.Join(h.dir, "iocs.yaml"), "--org", testOrg)
	require.Equal(t, 2, imp.Created)

	var run huntRunOutput
	h.runJSON(t, &run, "hunt", "run", "--org", testOrg, "--name", "sweep")
	require.NotNil(t, run.Result)
	assert.Equal(t, core.HuntStatusCompleted, run.Job.Status)
	// hash: ep-A and ep-B inventory; powershell.exe: ep-A inventory path and ep-B log line
	assert.Equal(t, 4, run.Result.TotalMatches)
	assert.Equal(t, 2, run.Result.TotalEndpoints)
	assert.Equal(t, 4, run.Job.MatchesFound)

	var show huntShowOutput
	h.runJSON(t, &show, "hunt", "show", run.Job.ID, "--org", testOrg)
	assert.Equal(t, int64(4), show.TotalMatches)
	assert.Len(t, show.Matches, 4)

	h.runJSON(t, &show, "hunt", "show", run.Job.ID, "--org", testOrg, "--limit", "1")
	assert.Len(t, show.Matches, 1)
	assert.Equal(t, int64(4), show.TotalMatches)

	_, err := h.run(t, "hunt", "show", run.Job.ID, "--org", "other-org")
	assert.Error(t, err)

	out, err := h.run(t, "hunt", "show", run.Job.ID, "--org", testOrg)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "MATCHES (4 of 4)")
}

func TestHuntRun_Errors(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "hunt", "run", "--org", testOrg)
	assert.Error(t, err, "--name is required")

	_, err = h.run(t, "hunt", "run", "--org", testOrg, "--name", "nothing to hunt")
	assert.ErrorContains(t, err, "failed to create hunt")
}

func TestSearchCmd(t *testing.T) {
	h := newCLIHarness(t)
	h.seed(t)

	var resp threat.QuickSearchResponse
	h.runJSON(t, &resp, "search", "powershell.exe", "--org", testOrg)
	assert.Equal(t, core.IndicatorKindFileName, resp.Kind)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, core.MatchSourceInventory, resp.Results[0].Source)
	assert.Equal(t, "ws-a", resp.Results[0].Hostname)
	assert.Equal(t, core.MatchSourceLog, resp.Results[1].Source)
	assert.Equal(t, "ws-b", resp.Results[1].Hostname)

	out, err := h.run(t, "search", "nothing-here.exe", "--org", testOrg)
	require.NoError(t, err)
	assert.Contains(t, out, "No endpoints matched")

	_, err = h.run(t, "search", "  ", "--org", testOrg)
	assert.Error(t, err)
}

func TestSeedCmd_Errors(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "seed", h.writeFile(t, "bad.yaml", "inventory:\n  - file_path: /tmp/x.exe\n"), "--org", testOrg)
	assert.ErrorContains(t, err, "inventory entry 1")

	_, err = h.run(t, "seed", h.writeFile(t, "seed.csv", "x"), "--org", testOrg)
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestTruncateAndShortID(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "12345678", shortID("1234567890"))
	assert.Equal(t, "abc", shortID("abc"))
}
