package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/picogrid/squad-sim/cmd/squad"
	"github.com/picogrid/squad-sim/pkg/logger"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Preview the squad a run would deploy",
	Long: `Generate a squad roster without joining a room. With the same seed
the roster matches the one a run would deploy.`,
	RunE: showRoster,
}

func init() {
	rosterCmd.Flags().Int64("seed", 0, "random seed (0 picks one)")
	rosterCmd.Flags().Int("count", 0, "number of entities")
	rosterCmd.Flags().String("kinds", "", "comma separated entity kinds")
	rosterCmd.Flags().String("video-dir", "", "directory of video assets")
	rosterCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	rosterCmd.Flags().Bool("json", false, "print the roster as JSON")
}

func rosterParams(cmd *cobra.Command) map[string]interface{} {
	params := make(map[string]interface{})
	if path, _ := cmd.Flags().GetString("params"); path != "" {
		params["config_file"] = path
	}
	if cmd.Flags().Changed("seed") {
		seed, _ := cmd.Flags().GetInt64("seed")
		params["seed"] = seed
	}
	if cmd.Flags().Changed("count") {
		count, _ := cmd.Flags().GetInt("count")
		params["entity_count"] = count
	}
	if kinds, _ := cmd.Flags().GetString("kinds"); kinds != "" {
		params["kinds"] = kinds
	}
	if dir, _ := cmd.Flags().GetString("video-dir"); dir != "" {
		params["video_dir"] = dir
	}
	return params
}

func showRoster(cmd *cobra.Command, _ []string) error {
	cfg, err := squad.ValidateAndParse(rosterParams(cmd))
	if err != nil {
		return err
	}

	entities, seed, err := squad.BuildRoster(cfg)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Seed     int64       `json:"seed"`
			Entities interface{} `json:"entities"`
		}{seed, entities})
	}

	logger.LogSection(fmt.Sprintf("Squad of %d", len(entities)))
	logger.LogKeyValue("Seed", seed)

	table := logger.NewTable("ID", "TYPE", "LAT", "LONG", "HEADING", "VIDEO")
	for _, e := range entities {
		video := "-"
		if e.VideoPath != "" {
			video = filepath.Base(e.VideoPath)
		}
		table.AddRow(
			e.ID,
			string(e.Kind),
			fmt.Sprintf("%.6f", e.Start.Lat),
			fmt.Sprintf("%.6f", e.Start.Long),
			fmt.Sprintf("%+.0f,%+.0f", e.Heading.DLat, e.Heading.DLong),
			video,
		)
	}
	table.Print()
	return nil
}
