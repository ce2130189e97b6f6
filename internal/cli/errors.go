// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/docchat-tui/internal/api"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/conn"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitTimeoutError = 8
)

// UsageError marks bad arguments or flags.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCodeFor maps an error to a process exit code.
func ExitCodeFor(err error) int {
	var (
		usage   *UsageError
		invalid config.ValidateErrors
		verr    config.ValidationError
		connErr *conn.ConnectionError
		rejErr  *api.SendRejectedError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &invalid), errors.As(err, &verr):
		return ExitConfigError
	case errors.Is(err, api.ErrUnauthorized):
		return ExitAuthError
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &connErr):
		return ExitNetworkError
	case errors.As(err, &rejErr) && rejErr.Status == 0:
		return ExitNetworkError
	}
	return ExitGeneralError
}

// DisplayError prints err in the standard format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	failColor.Fprint(w, "[ERROR] ")
	fmt.Fprintln(w, err.Error())
}
