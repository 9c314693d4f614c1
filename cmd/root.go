package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abhisek/quizloop/internal/config"
)

var v *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "quizloop",
	Short: "Adaptive quiz engine",
	Long:  "Quizloop: selects questions by proficiency, grades free-text answers with an LLM and tracks per-concept mastery.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v = config.New()
		return config.BindFlags(v, cmd.Flags())
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides QUIZLOOP_DB env var)")
	rootCmd.PersistentFlags().String("store", "", "Store backend: sqlite, mongo or memory (overrides QUIZLOOP_STORE)")
	rootCmd.PersistentFlags().String("log", "", "Log mode: dev or prod (overrides QUIZLOOP_LOG_MODE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(proficiencyCmd)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}
