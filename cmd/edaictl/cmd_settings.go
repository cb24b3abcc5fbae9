package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manthanabc/EDAI-5/internal/model"
	"github.com/manthanabc/EDAI-5/internal/storage"
)

var settingsFlags struct {
	provider        string
	apiKey          string
	judgeModel      string
	coJudgeModel    string
	availableModels string
	effective       bool
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update the persisted provider configuration",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored (or effective) provider configuration with the key redacted",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the stored provider configuration",
	RunE:  runSettingsSet,
}

func init() {
	settingsShowCmd.Flags().BoolVar(&settingsFlags.effective, "effective", false, "Show stored settings merged over environment defaults")

	f := settingsSetCmd.Flags()
	f.StringVar(&settingsFlags.provider, "provider", "", "Provider name, e.g. openrouter or gemini (required)")
	f.StringVar(&settingsFlags.apiKey, "api-key", "", "Provider API key (required)")
	f.StringVar(&settingsFlags.judgeModel, "judge-model", "", "Default judge model")
	f.StringVar(&settingsFlags.coJudgeModel, "co-judge-model", "", "Default co-judge model")
	f.StringVar(&settingsFlags.availableModels, "available-models", "", "Comma-separated models offered to admins")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if settingsFlags.effective {
		return printJSON(cmd.OutOrStdout(), app.Settings().Resolve(cmd.Context()).Redacted())
	}
	stored, err := app.Settings().Stored(cmd.Context())
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No provider configuration stored; environment defaults apply.")
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), stored.Redacted())
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	cfg := model.ProviderConfig{
		Provider:     settingsFlags.provider,
		APIKey:       settingsFlags.apiKey,
		JudgeModel:   settingsFlags.judgeModel,
		CoJudgeModel: settingsFlags.coJudgeModel,
	}
	for _, m := range strings.Split(settingsFlags.availableModels, ",") {
		if m = strings.TrimSpace(m); m != "" {
			cfg.AvailableModels = append(cfg.AvailableModels, m)
		}
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Settings().Save(cmd.Context(), cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved provider configuration (%s)\n", cfg.Provider)
	return nil
}
