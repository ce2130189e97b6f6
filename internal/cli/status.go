// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat-tui/internal/conn"
	"github.com/jeranaias/docchat-tui/internal/endpoint"
	"github.com/jeranaias/docchat-tui/internal/session"
)

const probeTimeout = 5 * time.Second

func newStatusCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the resolved session and check that the service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, global)
		},
	}
}

func runStatus(cmd *cobra.Command, global *globalOptions) error {
	e, err := global.setup(cmd, nil)
	if err != nil {
		return err
	}
	defer e.close()

	out := cmd.OutOrStdout()
	params := session.ParamsFromConfig(e.cfg)
	mode := "direct"
	if params.ProxyEnabled {
		mode = "proxy"
	}

	fmt.Fprintln(out, TitleStyle.Render("docchat status"))
	field(out, "config", e.path)
	field(out, "session", orDash(params.SessionID))
	field(out, "bucket", orDash(params.BucketName))
	field(out, "document", orDash(params.FilePath))
	field(out, "mode", mode)
	field(out, "model", e.cfg.Chat.Model)
	field(out, "send url", strings.TrimRight(e.cfg.Server.APIURL, "/")+e.cfg.Server.SendPath)

	ctx := cmd.Context()
	var firstErr error

	httpErr := probeHTTP(ctx, e.cfg.Server.APIURL)
	report(out, "api", httpErr)
	firstErr = httpErr

	u, ok := endpoint.Resolve(e.cfg.Server.WSURL, e.cfg.Server.APIKey, params)
	if !ok {
		field(out, "stream url", "-")
		warnColor.Fprintf(out, "missing %s\n", strings.Join(params.Missing(), ", "))
		return firstErr
	}
	field(out, "stream url", endpoint.Redact(u))
	wsErr := probeSocket(ctx, u)
	report(out, "stream", wsErr)
	if firstErr == nil {
		firstErr = wsErr
	}
	return firstErr
}

func field(out io.Writer, label, value string) {
	fmt.Fprintln(out, LabelStyle.Render(label)+ValueStyle.Render(value))
}

func report(out io.Writer, label string, err error) {
	fmt.Fprint(out, LabelStyle.Render(label))
	if err != nil {
		failColor.Fprintf(out, "unreachable: %v\n", err)
		return
	}
	okColor.Fprintln(out, "ok")
}

// probeHTTP reports whether anything answers at base. Any HTTP status counts.
func probeHTTP(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return &conn.ConnectionError{Op: "dial", URL: base, Err: err}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &conn.ConnectionError{Op: "dial", URL: base, Err: err}
	}
	resp.Body.Close()
	return nil
}

// probeSocket opens and immediately closes a stream socket.
func probeSocket(ctx context.Context, u string) error {
	sock, err := conn.WebsocketDialer{HandshakeTimeout: probeTimeout}.Dial(ctx, u)
	if err != nil {
		return &conn.ConnectionError{Op: "dial", URL: endpoint.Redact(u), Err: err}
	}
	_ = sock.Close(websocket.StatusNormalClosure, "status probe")
	return nil
}
