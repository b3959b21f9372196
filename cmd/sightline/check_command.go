package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sightline/internal/deps"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the configured tools and directories are usable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			lines := renderSectionHeader("Tools", colorize)
			available := 0
			for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
				lines = append(lines, renderDependency(status, colorize))
				if status.Available {
					available++
				}
			}
			lines = append(lines, renderDependency(deps.CheckFFmpegForTool(cfg.Deface.Binary), colorize))

			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Paths", colorize)...)
			if ctx.configPath != "" {
				lines = append(lines, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			}
			lines = append(lines, renderDirectory("Output dir", cfg.Paths.OutputDir, colorize))
			lines = append(lines, renderDirectory("Log dir", cfg.Paths.LogDir, colorize))
			lines = append(lines, renderStatusLine("History", statusInfo, cfg.HistoryPath(), colorize))

			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			if available == 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Neither tool is installed; set deface.binary or transcribe.binary in the config file.")
			}
			return nil
		},
	}
}

func renderDependency(status deps.Status, colorize bool) string {
	if status.Available {
		return renderStatusLine(status.Name, statusOK, status.Resolved, colorize)
	}
	kind := statusError
	if status.Optional {
		kind = statusWarn
	}
	return renderStatusLine(status.Name, kind, status.Detail, colorize)
}

func renderDirectory(label, dir string, colorize bool) string {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return renderStatusLine(label, statusError, fmt.Sprintf("%s (missing)", dir), colorize)
	case !info.IsDir():
		return renderStatusLine(label, statusError, fmt.Sprintf("%s (not a directory)", dir), colorize)
	default:
		return renderStatusLine(label, statusOK, dir, colorize)
	}
}
