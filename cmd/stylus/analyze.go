package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/stylus/internal/analyzer"
	"github.com/FranksOps/stylus/internal/export"
	"github.com/FranksOps/stylus/internal/report"
)

func newKeywordsCmd(a *app) *cobra.Command {
	var top int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Rank the style keywords used across collected prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			records, err := s.URLs(ctx)
			if err != nil {
				return err
			}
			songs, err := s.Songs(ctx)
			if err != nil {
				return err
			}

			counts := analyzer.Keywords(analyzer.Prompts(records, songs), top)
			if asJSON {
				return writeJSON(a.out, counts)
			}
			if len(counts) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("No style prompts collected yet."))
				return nil
			}
			t := newTable("Keyword", "Songs", "Share")
			for _, kc := range counts {
				t.Row(kc.Keyword, fmt.Sprint(kc.Count), fmt.Sprintf("%.1f%%", kc.Share*100))
			}
			fmt.Fprintln(a.out, t.String())
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "number of keywords to show (0 means all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newSearchCmd(a *app) *cobra.Command {
	var all, asJSON bool

	cmd := &cobra.Command{
		Use:   "search <term>...",
		Short: "Find collected songs whose title or prompt mention the given terms",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			records, err := s.URLs(ctx)
			if err != nil {
				return err
			}

			matches := analyzer.Search(records, args, all)
			if asJSON {
				return writeJSON(a.out, matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("No matches."))
				return nil
			}
			t := newTable("Title", "Matched", "URL")
			for _, m := range matches {
				var hits []string
				for _, tm := range m.Matches {
					hits = append(hits, fmt.Sprintf("%s×%d", tm.Term, tm.Count))
				}
				t.Row(truncate(orUntitled(m.Record.Title), 32), strings.Join(hits, " "), m.Record.Locator)
			}
			fmt.Fprintln(a.out, t.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "require every term to match")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var format, out string
	var top int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the collection as text, JSON or an HTML gallery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			records, err := s.URLs(ctx)
			if err != nil {
				return err
			}
			songs, err := s.Songs(ctx)
			if err != nil {
				return err
			}
			last, err := s.LastUpdate(ctx)
			if err != nil {
				return err
			}
			summary := report.GenerateSummary(songs, records, last, top)

			var buf bytes.Buffer
			switch format {
			case "text":
				err = report.WriteText(&buf, summary)
			case "json":
				err = report.WriteJSON(&buf, summary)
			case "html":
				err = report.WriteHTML(&buf, summary)
			default:
				return fmt.Errorf("unknown report format %q (want text, json or html)", format)
			}
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err := a.out.Write(buf.Bytes())
				return err
			}
			if err := export.WriteFile(out, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("Report written to "+out))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "report format: text, json or html")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&top, "top", 15, "number of keywords in the summary")
	return cmd
}
