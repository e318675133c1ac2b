package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/storage"
)

func renderRecords(records []storage.Record) string {
	t := newTable("#", "Title", "Prompt", "URL")
	for i, r := range records {
		t.Row(fmt.Sprint(i+1), truncate(orUntitled(r.Title), 32), truncate(r.Prompt, 48), r.Locator)
	}
	return t.String()
}

func renderSongs(songs []storage.SongRecord) string {
	t := newTable("#", "Title", "Style", "Saved", "URL")
	for i, s := range songs {
		t.Row(fmt.Sprint(i+1), truncate(orUntitled(s.Title), 32), truncate(s.StylePrompt, 40), s.SavedAt.Local().Format(time.DateTime), s.URL)
	}
	return t.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// send delivers req to the background context and turns an unsuccessful
// response into an error.
func send(cmd *cobra.Command, bus *messaging.Bus, req messaging.Request) (messaging.Response, error) {
	res, err := bus.Send(cmd.Context(), messaging.TargetBackground, req)
	if err != nil {
		return res, err
	}
	if !res.Success {
		return res, fmt.Errorf("%s: %s", req.Action, res.Error)
	}
	return res, nil
}

func newListCmd(a *app) *cobra.Command {
	var songs, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collected songs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, _, err := a.background(cmd.Context())
			if err != nil {
				return err
			}

			if songs {
				res, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllSongs})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(a.out, res.Songs)
				}
				if len(res.Songs) == 0 {
					fmt.Fprintln(a.out, dimStyle.Render("No songs saved yet."))
					return nil
				}
				fmt.Fprintln(a.out, renderSongs(res.Songs))
				return nil
			}

			res, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllURLs})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(a.out, res.URLs)
			}
			if len(res.URLs) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("No songs collected yet. Run `stylus scrape` on a workspace page."))
				return nil
			}
			fmt.Fprintln(a.out, renderRecords(res.URLs))

			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			last, err := s.LastUpdate(cmd.Context())
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("%d songs", len(res.URLs))
			if !last.IsZero() {
				summary += ", last updated " + last.Local().Format(time.DateTime)
			}
			fmt.Fprintln(a.out, dimStyle.Render(summary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&songs, "songs", false, "list detailed song snapshots instead of collected links")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <url>",
		Short: "Show everything stored for one song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, _, err := a.background(cmd.Context())
			if err != nil {
				return err
			}
			loc, ok := a.engine().Normalizer().Normalize(args[0], "")
			if !ok {
				loc = args[0]
			}

			urls, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllURLs})
			if err != nil {
				return err
			}
			songs, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllSongs})
			if err != nil {
				return err
			}

			out := struct {
				Record *storage.Record     `json:"record,omitempty"`
				Song   *storage.SongRecord `json:"song,omitempty"`
			}{}
			for i := range urls.URLs {
				if urls.URLs[i].Locator == loc {
					out.Record = &urls.URLs[i]
				}
			}
			for i := range songs.Songs {
				if songs.Songs[i].URL == args[0] || songs.Songs[i].URL == loc {
					out.Song = &songs.Songs[i]
				}
			}
			if out.Record == nil && out.Song == nil {
				return fmt.Errorf("no stored song for %s", args[0])
			}
			return writeJSON(a.out, out)
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var song bool

	cmd := &cobra.Command{
		Use:   "delete <url>",
		Short: "Remove one collected song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, _, err := a.background(cmd.Context())
			if err != nil {
				return err
			}
			action := messaging.ActionDeleteURL
			if song {
				action = messaging.ActionDeleteSong
			}
			res, err := send(cmd, bus, messaging.Request{Action: action, URL: args[0]})
			if err != nil {
				return err
			}
			if res.Removed == nil || !*res.Removed {
				fmt.Fprintln(a.out, dimStyle.Render("Nothing stored for "+args[0]))
				return nil
			}
			fmt.Fprintln(a.out, successStyle.Render("Deleted "+args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&song, "song", false, "delete the detailed song snapshot instead of the collected link")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var all, yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every collected link (or, with --all, everything)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			bus, _, err := a.background(cmd.Context())
			if err != nil {
				return err
			}
			action, what := messaging.ActionClearURLs, "collected links"
			if all {
				action, what = messaging.ActionClearAll, "all data"
			}
			if _, err := send(cmd, bus, messaging.Request{Action: action}); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("Cleared "+what))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also delete song snapshots")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
