package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/stylus/internal/export"
	"github.com/FranksOps/stylus/internal/messaging"
)

func newExportCmd(a *app) *cobra.Command {
	var format, fields, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write collected data to a file",
		Long: `Export everything as JSON ({songs, urls, exportedAt}), or the collected
links as tab-separated lines with the chosen fields (url, title, prompt,
image). The default file name carries today's date; use --out - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bus, _, err := a.background(cmd.Context())
			if err != nil {
				return err
			}
			urls, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllURLs})
			if err != nil {
				return err
			}

			now := time.Now()
			var buf bytes.Buffer
			name := out

			switch format {
			case "json":
				songs, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllSongs})
				if err != nil {
					return err
				}
				if err := export.WriteJSON(&buf, export.NewDocument(songs.Songs, urls.URLs, now)); err != nil {
					return err
				}
				if name == "" {
					name = export.DataFileName(now)
				}
			case "tsv":
				sel, err := export.ParseFields(fields)
				if err != nil {
					return err
				}
				buf.WriteString(export.FormatTSV(urls.URLs, sel))
				if name == "" {
					name = export.URLsFileName(now)
				}
			default:
				return fmt.Errorf("unknown export format %q (want json or tsv)", format)
			}

			if name == "-" {
				_, err := a.out.Write(buf.Bytes())
				return err
			}
			if err := export.WriteFile(name, buf.Bytes()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("Exported %d songs to %s", len(urls.URLs), name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "export format: json or tsv")
	cmd.Flags().StringVar(&fields, "fields", "", "comma separated tsv fields (default url,title,prompt)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout")
	return cmd
}

func newCopyCmd(a *app) *cobra.Command {
	var fields string

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy collected links to the clipboard as tab-separated lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := export.ParseFields(fields)
			if err != nil {
				return err
			}
			bus, _, err := a.background(cmd.Context())
			if err != nil {
				return err
			}
			urls, err := send(cmd, bus, messaging.Request{Action: messaging.ActionGetAllURLs})
			if err != nil {
				return err
			}
			if len(urls.URLs) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("Nothing to copy."))
				return nil
			}
			if err := export.Copy(export.FormatTSV(urls.URLs, sel)); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("Copied %d songs to the clipboard", len(urls.URLs))))
			return nil
		},
	}
	cmd.Flags().StringVar(&fields, "fields", "", "comma separated fields: url, title, prompt, image (default url,title,prompt)")
	return cmd
}
