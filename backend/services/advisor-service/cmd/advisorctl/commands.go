package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartcharge/backend/libs/logging"
	"smartcharge/backend/services/advisor-service/internal/advisory"
	"smartcharge/backend/services/advisor-service/internal/app"
	"smartcharge/backend/services/advisor-service/internal/config"
)

// invokerFactory returns the model invoker and the logger used by the command.
type invokerFactory func(ctx context.Context, configPath string) (advisory.Invoker, *zap.Logger, error)

func invokerFromConfig(ctx context.Context, configPath string) (advisory.Invoker, *zap.Logger, error) {
	if configPath != "" {
		if err := os.Setenv("CONFIG_FILE", configPath); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger("advisorctl")
	if err != nil {
		return nil, nil, err
	}
	invoker, err := app.NewInvoker(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return invoker, logger, nil
}

func newRootCmd(factory invokerFactory) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "advisorctl",
		Short:         "Run smart charging advisory functions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	root.AddCommand(newAnalyzeCmd(factory, &configPath), newRecommendCmd(factory, &configPath))
	return root
}

func newAnalyzeCmd(factory invokerFactory, configPath *string) *cobra.Command {
	var req advisory.PatternAnalysisRequest

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze charging patterns of a station over a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			invoker, logger, err := factory(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			fn, err := advisory.NewPatternAnalysis(invoker, logger)
			if err != nil {
				return err
			}
			res, err := fn.Invoke(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&req.StationID, "station", "", "charging station id")
	cmd.Flags().StringVar(&req.StartDate, "from", "", "start of the range (ISO 8601)")
	cmd.Flags().StringVar(&req.EndDate, "to", "", "end of the range (ISO 8601)")
	return cmd
}

func newRecommendCmd(factory invokerFactory, configPath *string) *cobra.Command {
	var (
		userID   string
		sessions string
		grid     string
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend an optimized charging plan for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionsJSON, err := readArg(sessions)
			if err != nil {
				return err
			}
			gridJSON, err := readArg(grid)
			if err != nil {
				return err
			}

			invoker, logger, err := factory(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			fn, err := advisory.NewRecommendation(invoker, logger)
			if err != nil {
				return err
			}
			res, err := fn.Invoke(cmd.Context(), advisory.RecommendationRequest{
				UserID:                 userID,
				RecentChargingSessions: sessionsJSON,
				CurrentGridConditions:  gridJSON,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&sessions, "sessions", "[]", "recent sessions as a JSON array, or @file")
	cmd.Flags().StringVar(&grid, "grid", "{}", "current grid conditions as a JSON object, or @file")
	return cmd
}

// readArg returns value verbatim, or the contents of the file named after a leading @.
func readArg(value string) (string, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
