package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"careerstack/apps/converter/features/conversion"
	"careerstack/apps/converter/internal/app"
	"careerstack/apps/converter/internal/config"
	"careerstack/apps/converter/internal/htmlpatch"
	"careerstack/apps/converter/internal/logger"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert a single file",
	Long: `Convert runs one conversion without the HTTP layer. The direction follows
the file extensions: .docx to .html/.htm, or .html/.htm to .docx.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("template", conversion.DefaultTemplate, "template name for html to docx (a .dotx under TEMPLATE_DIR)")
	convertCmd.Flags().String("preset", "", "html style preset: readable, preserve or none (default HTML_STYLE_PRESET)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	if err := conversion.CheckFormats(in, out); err != nil {
		return err
	}
	if _, err := os.Stat(in); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	template, _ := cmd.Flags().GetString("template")
	presetFlag, _ := cmd.Flags().GetString("preset")
	if presetFlag == "" {
		presetFlag = cfg.HTMLStylePreset
	}
	preset, err := htmlpatch.ParsePreset(presetFlag)
	if err != nil {
		return err
	}

	// Keep stdout for the user; logs go to stderr.
	log := logger.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup, bridge, err := app.StartOffice(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sup.Stop()

	svc := conversion.NewService(bridge, bridge, nil, nil, conversion.Options{
		Preset:      preset,
		TempDir:     cfg.TempDir,
		TemplateDir: cfg.TemplateDir,
	})
	if err := svc.ConvertFile(ctx, in, out, template); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", in, out)
	return nil
}
