package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	statusadapter "github.com/voicevault/voicevault/internal/adapters/render/status"
	"github.com/voicevault/voicevault/internal/domain"
)

// Slots untouched for this long get a stale marker in listings.
const staleSlotAge = 30 * 24 * time.Hour

func newSlotCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slot",
		Short: "Manage saved voice-record slots",
	}

	cmd.AddCommand(
		newSlotListCmd(app),
		newSlotInspectCmd(app),
		newSlotDeleteCmd(app),
	)

	return cmd
}

func newSlotListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved slots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := app.store.List(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]statusadapter.SlotView, 0, len(infos))
			for _, info := range infos {
				views = append(views, statusadapter.SlotView{Info: info})
			}

			output, err := app.renderer(views, statusadapter.RenderOptions{Now: app.now(), StaleAfter: staleSlotAge})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
}

func newSlotInspectCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <slot>",
		Short: "Show the records and identity mappings of one slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := domain.SlotID(args[0])
			if err := slot.Validate(); err != nil {
				return err
			}
			if !app.store.Exists(slot) {
				return fmt.Errorf("slot %s: %w", slot, domain.ErrSlotNotFound)
			}

			records := app.store.Read(cmd.Context(), slot)
			mapping := app.store.ReadMapping(cmd.Context(), slot)

			view := statusadapter.SlotView{
				Info:     slotInfoFor(app, cmd, slot, len(records), len(mapping)),
				Records:  records,
				Mapping:  mapping,
				Detailed: true,
			}

			output, err := app.renderer([]statusadapter.SlotView{view}, statusadapter.RenderOptions{Now: app.now(), StaleAfter: staleSlotAge})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
}

// slotInfoFor prefers the catalog row; a slot written by an older build may
// not have one, so fall back to what was just read.
func slotInfoFor(app *app, cmd *cobra.Command, slot domain.SlotID, records, mappings int) domain.SlotInfo {
	infos, err := app.store.List(cmd.Context())
	if err == nil {
		for _, info := range infos {
			if info.ID == slot {
				return info
			}
		}
	}
	return domain.SlotInfo{ID: slot, Records: records, Mappings: mappings}
}

func newSlotDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slot>",
		Short: "Delete a slot, including its backup files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := domain.SlotID(args[0])
			if err := slot.Validate(); err != nil {
				return err
			}

			if err := app.store.Delete(slot); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted slot %s\n", slot)
			return nil
		},
	}
}
