package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/scraper"
)

func newScrapeCmd(a *app) *cobra.Command {
	var (
		kind, base  string
		dryRun      bool
		diagnostics bool
	)

	cmd := &cobra.Command{
		Use:   "scrape [location]",
		Short: "Collect every song on a workspace or playlist page and save it",
		Long: `Load a page (a URL or a saved HTML snapshot), find every song link on it
with its title, style prompt and cover image, and merge them into the store.
Fields already stored are never blanked by a later, emptier scrape.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			location := scraper.DefaultSnapshotBase
			if len(args) == 1 {
				location = args[0]
			}

			bus, _, err := a.background(ctx)
			if err != nil {
				return err
			}
			defer bus.Wait()

			if _, err := a.openPage(ctx, bus, kind, base, location); err != nil {
				return err
			}

			res, err := bus.Send(ctx, messaging.TargetPage, messaging.Request{Action: messaging.ActionGetAllURLs})
			if err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("scrape failed: %s", res.Error)
			}

			if diagnostics && res.Diagnostics != nil {
				enc := json.NewEncoder(a.errOut)
				enc.SetIndent("", "  ")
				_ = enc.Encode(res.Diagnostics)
			}

			if len(res.URLs) == 0 {
				fmt.Fprintln(a.out, warningStyle.Render("No songs found on this page."))
				return nil
			}
			if dryRun {
				fmt.Fprintln(a.out, renderRecords(res.URLs))
				fmt.Fprintf(a.out, "%s\n", dimStyle.Render(fmt.Sprintf("%d songs found (dry run, nothing saved)", len(res.URLs))))
				return nil
			}

			save, err := messaging.NewRequest(messaging.ActionSaveURLs, res.URLs)
			if err != nil {
				return err
			}
			saved, err := bus.Send(ctx, messaging.TargetBackground, save)
			if err != nil {
				return err
			}
			if !saved.Success {
				return fmt.Errorf("save failed: %s", saved.Error)
			}

			m := saved.Merge
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf(
				"Saved %d songs (%d new, %d updated, %d stored)", len(res.URLs), m.Added, m.Updated, m.Total)))
			return nil
		},
	}

	addLoaderFlags(cmd, &kind, &base)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what was found without saving")
	cmd.Flags().BoolVar(&diagnostics, "diagnostics", false, "print scrape diagnostics to stderr")
	return cmd
}

func newSongCmd(a *app) *cobra.Command {
	var kind, base string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "song <location>",
		Short: "Save the title, lyrics, style and tags of a single song page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bus, _, err := a.background(ctx)
			if err != nil {
				return err
			}
			defer bus.Wait()

			if _, err := a.openPage(ctx, bus, kind, base, args[0]); err != nil {
				return err
			}

			res, err := bus.Send(ctx, messaging.TargetPage, messaging.Request{Action: messaging.ActionExtractSongData})
			if err != nil {
				return err
			}
			if !res.Success || res.Data == nil {
				return fmt.Errorf("extract song: %s", res.Error)
			}
			song := *res.Data

			fmt.Fprintln(a.out, titleStyle.Render(orUntitled(song.Title)))
			if song.StylePrompt != "" {
				fmt.Fprintln(a.out, song.StylePrompt)
			}
			if dryRun {
				return nil
			}

			req, err := messaging.NewRequest(messaging.ActionSaveSongData, song)
			if err != nil {
				return err
			}
			saved, err := bus.Send(ctx, messaging.TargetBackground, req)
			if err != nil {
				return err
			}
			if !saved.Success {
				return fmt.Errorf("save song: %s", saved.Error)
			}
			fmt.Fprintln(a.out, successStyle.Render("Song saved"))
			return nil
		},
	}

	addLoaderFlags(cmd, &kind, &base)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the song without saving")
	return cmd
}

func orUntitled(s string) string {
	if s == "" {
		return "(untitled)"
	}
	return s
}
