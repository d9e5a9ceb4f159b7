package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var refreshMediaCmd = &cobra.Command{
	Use:   "refresh-media [media-id]",
	Short: "Refresh the stored media URL of a post",
	Long: `Fetches the current media URL of a stored post, falling back to its
permalink, and saves it. Media URLs served by Instagram expire.`,
	Args: cobra.ExactArgs(1),
	RunE: runRefreshMedia,
}

func init() {
	rootCmd.AddCommand(refreshMediaCmd)
}

func runRefreshMedia(cmd *cobra.Command, args []string) error {
	if mediaRefresher == nil {
		return errors.New("media service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	url, err := mediaRefresher.RefreshMediaURL(ctx, args[0])
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	cmd.Printf("%s\n", url)
	return nil
}
