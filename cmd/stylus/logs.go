package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/stylus/internal/export"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/pkg/httpclient"
)

// remote sends background requests to a running `stylus serve`, which owns
// the debug log.
type remote struct {
	base   string
	client *httpclient.Client
}

func newRemote(addr string) (*remote, error) {
	c, err := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &remote{base: strings.TrimSuffix(addr, "/"), client: c}, nil
}

func (r *remote) send(ctx context.Context, req messaging.Request) (messaging.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return messaging.Response{}, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, r.base+"/api/v1/messages", bytes.NewReader(body))
	if err != nil {
		return messaging.Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(ctx, httpReq)
	if err != nil {
		return messaging.Response{}, fmt.Errorf("%w: no stylus server at %s: %v", messaging.ErrNoListener, r.base, err)
	}
	defer resp.Body.Close()

	var res messaging.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&res); err != nil {
		return messaging.Response{}, fmt.Errorf("decode %s response: %w", req.Action, err)
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return res, fmt.Errorf("%w: %s", messaging.ErrNoListener, res.Error)
	}
	if !res.Success {
		return res, errors.New(res.Error)
	}
	return res, nil
}

func newLogsCmd(a *app) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show, copy or clear the debug log of a running stylus serve",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "", "address of stylus serve (default server.addr)")

	connect := func() (*remote, error) {
		addr := server
		if addr == "" {
			addr = a.cfg.Server.Addr
		}
		return newRemote(addr)
	}
	fetch := func(cmd *cobra.Command) ([]messaging.LogEntry, error) {
		r, err := connect()
		if err != nil {
			return nil, err
		}
		res, err := r.send(cmd.Context(), messaging.Request{Action: messaging.ActionGetDebugLogs})
		if err != nil {
			return nil, err
		}
		return res.Logs, nil
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the debug log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := fetch(cmd)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("The debug log is empty."))
				return nil
			}
			fmt.Fprintln(a.out, export.FormatDebugLogs(entries))
			return nil
		},
	}

	copyCmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy the debug log to the clipboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := fetch(cmd)
			if err != nil {
				return err
			}
			if err := export.Copy(export.FormatDebugLogs(entries)); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("Copied %d debug log entries to the clipboard", len(entries))))
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear the debug log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := connect()
			if err != nil {
				return err
			}
			if _, err := r.send(cmd.Context(), messaging.Request{Action: messaging.ActionClearDebugLogs}); err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render("Debug log cleared"))
			return nil
		},
	}

	cmd.AddCommand(show, copyCmd, clearCmd)
	return cmd
}
