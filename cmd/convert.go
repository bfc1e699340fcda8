package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var convertUserID string

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Run the answer conversion pipeline for one user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if convertUserID == "" {
			return eris.New("--user is required")
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Converter.Convert(cmd.Context(), convertUserID)
		if err != nil {
			return err
		}

		zap.L().Info("conversion finished",
			zap.String("user_id", convertUserID),
			zap.Bool("users_updated", result.UsersUpdated),
			zap.Bool("profile_updated", result.ProfileUpdated),
			zap.Int("events_created", result.EventsCreated),
			zap.Int("skipped", result.Skipped),
			zap.Int("errors", len(result.Errors)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertUserID, "user", "", "user id to convert answers for")
	rootCmd.AddCommand(convertCmd)
}
