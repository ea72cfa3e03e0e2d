package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/mistakebook/internal/config"
	"github.com/abhisek/mistakebook/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mistakebook",
	Short: "Wrong-answer notebook with LLM-reviewed solutions",
	Long: "mistakebook records the questions you got wrong, solves them with an LLM against the " +
		"knowledge points you name, has a second pass review the solution, and keeps a tally of " +
		"the knowledge points your mistakes keep touching.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MISTAKEBOOK_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (default $XDG_CONFIG_HOME/mistakebook/config.yaml)")
	rootCmd.PersistentFlags().String("user", "local", "User id owning the questions")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(questionCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file named by --config (or the default path)
// and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then db.path from config, then MISTAKEBOOK_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg *config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg != nil && cfg.DB.Path != "" {
		return cfg.DB.Path, store.EnsureDir(cfg.DB.Path)
	}
	return store.DefaultDBPath()
}

func currentUser(cmd *cobra.Command) string {
	u, _ := cmd.Flags().GetString("user")
	return u
}
