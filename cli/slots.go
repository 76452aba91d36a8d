package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/texlate/texlate/engine/infra/cache"
	"github.com/texlate/texlate/engine/slot"
	"github.com/texlate/texlate/pkg/config"
)

// SlotsStatus is the shared counter as seen by this process.
type SlotsStatus struct {
	Mode      string `json:"mode"`
	Key       string `json:"key"`
	Limit     int    `json:"limit"`
	InUse     int64  `json:"in_use"`
	Available int64  `json:"available"`
}

// SlotsCmd reads the shared counter without starting any job.
func SlotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show how many translation slots are in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			c, cleanup, err := cache.SetupCache(ctx)
			if err != nil {
				return fmt.Errorf("failed to set up slot store: %w", err)
			}
			defer cleanup()
			counter, err := slot.NewRedisCounter(c.Client, cfg.Slots.Key)
			if err != nil {
				return err
			}
			inUse, err := counter.Get(ctx)
			if err != nil {
				return fmt.Errorf("failed to read slot counter: %w", err)
			}
			status := SlotsStatus{
				Mode:      c.Mode,
				Key:       cfg.Slots.Key,
				Limit:     cfg.Slots.Limit,
				InUse:     inUse,
				Available: max(int64(cfg.Slots.Limit)-inUse, 0),
			}
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			case "table":
				color := colorEnabled(out)
				_, err := fmt.Fprintf(out, "%s %d/%d in use (%d available)\n%s %s (%s)\n",
					renderLabel("slots:", color), status.InUse, status.Limit, status.Available,
					renderLabel("store:", color), status.Key, status.Mode)
				return err
			default:
				return fmt.Errorf("unsupported format %q (json, table)", format)
			}
		},
	}
	cmd.Flags().StringP("format", "f", "table", "Output format (json, table)")
	return cmd
}
