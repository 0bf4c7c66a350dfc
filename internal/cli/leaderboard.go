package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"quiz-results-service/internal/config"
	"quiz-results-service/internal/logger"
)

// NewLeaderboardCmd prints a quiz leaderboard as JSON straight from the configured store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		quizID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the leaderboard for a quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			service, conns, err := buildService(cmd.Context(), cfg, log, nil)
			if err != nil {
				return err
			}
			defer conns.Close()

			lb, err := service.Leaderboard(cmd.Context(), quizID, limit)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(lb, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&quizID, "quiz", "", "quiz id")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of entries (default from config)")
	_ = cmd.MarkFlagRequired("quiz")
	return cmd
}
