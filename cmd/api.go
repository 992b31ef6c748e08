package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/desertthunder/spotui/internal/shared"
	"github.com/urfave/cli/v3"
)

// APIGet makes an authorized GET to a Web API path and prints the response.
//
// Non-2xx responses are printed like any other and then returned as [shared.ErrAPIRequest].
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	path := strings.TrimSpace(cmd.StringArg("path"))
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	if err := r.signedIn(); err != nil {
		return err
	}

	r.logger.Debug("GET request", "path", path)

	resp, err := r.api.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("headers") {
		r.writePlain("%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
		keys := make([]string, 0, len(resp.Headers))
		for k := range resp.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.writePlain("%s: %s\n", k, strings.Join(resp.Headers[k], ", "))
		}
		r.writePlain("\n")
	}

	switch {
	case resp.IsJSON:
		if err := r.writeJSON(resp.JSONData, cmd.Bool("pretty")); err != nil {
			return err
		}
	case len(resp.Body) > 0:
		r.output.Write(resp.Body)
		r.output.Write([]byte("\n"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return nil
}
