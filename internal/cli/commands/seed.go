package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapscript/internal/cli/output"
)

// SeedInfo is the JSON form of one loaded seed.
type SeedInfo struct {
	Table    string `json:"table"`
	FilePath string `json:"file_path"`
}

// SeedOutput is the JSON output of the seed command.
type SeedOutput struct {
	SeedsDir string     `json:"seeds_dir"`
	Seeds    []SeedInfo `json:"seeds"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load seed data from CSV files",
		Long: `Load seed data from CSV files in the seeds directory into the database.

Each CSV file becomes a table named after the file. 'leapscript run' loads
seeds before the first script as well; use this command to load them into a
persistent database once.`,
		Example: `  # Load all seeds
  leapscript seed

  # Load seeds from a specific directory into a file database
  leapscript seed --seeds-dir ./data/seeds --database ./dev.duckdb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd)
		},
	}

	return cmd
}

func runSeed(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	r := cmdCtx.Renderer
	seedsDir := cmdCtx.Cfg.SeedsDir

	seedFiles, err := getSeedFiles(seedsDir)
	if err != nil {
		return err
	}

	if len(seedFiles) > 0 {
		if err := cmdCtx.Engine.LoadSeeds(ctx); err != nil {
			return err
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return seedJSON(r, seedsDir, seedFiles)
	case output.ModeMarkdown:
		seedMarkdown(r, seedsDir, seedFiles)
	default:
		seedText(r, seedsDir, seedFiles)
	}
	return nil
}

// getSeedFiles returns the CSV files in the seeds directory.
func getSeedFiles(seedsDir string) ([]string, error) {
	if seedsDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(seedsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

func seedText(r *output.Renderer, seedsDir string, files []string) {
	if len(files) == 0 {
		r.Muted("No seed files found in " + seedsDir)
		return
	}
	for _, file := range files {
		r.StatusLine(strings.TrimSuffix(file, ".csv"), "success", file)
	}
	r.Muted("Source: " + seedsDir)
}

func seedMarkdown(r *output.Renderer, seedsDir string, files []string) {
	r.Println(output.FormatHeader(1, "Seeds"))
	r.Println("")
	if len(files) == 0 {
		r.Println("No seed files found in " + seedsDir)
		return
	}
	for _, file := range files {
		r.Printf("- `%s` from %s\n", strings.TrimSuffix(file, ".csv"), file)
	}
	r.Println("")
	r.Println(output.FormatKeyValue("Source Directory", seedsDir))
}

func seedJSON(r *output.Renderer, seedsDir string, files []string) error {
	seeds := make([]SeedInfo, 0, len(files))
	for _, file := range files {
		absPath, _ := filepath.Abs(filepath.Join(seedsDir, file))
		seeds = append(seeds, SeedInfo{
			Table:    strings.TrimSuffix(file, ".csv"),
			FilePath: absPath,
		})
	}
	return r.JSON(SeedOutput{SeedsDir: seedsDir, Seeds: seeds})
}
