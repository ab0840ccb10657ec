package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/backkem/camlink/pkg/camlink"
	"github.com/backkem/camlink/pkg/push"
	"github.com/spf13/cobra"
)

var pushCamera string

var pushCmd = &cobra.Command{
	Use:   "push [PAYLOAD...]",
	Short: "Handle base64 push payloads",
	Long: `Handle one push per base64 payload argument, or one per line of
standard input when no argument is given. Each result is printed on its own
line. Background downloads finish before the command exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, nil, func(app *camlink.App) error {
			out := cmd.OutOrStdout()
			if len(args) > 0 {
				for _, a := range args {
					printResult(out, handleLine(ctx, app, pushCamera, a))
				}
			} else if err := readPushes(ctx, app, cmd.InOrStdin(), out, pushCamera); err != nil {
				return err
			}
			app.Dispatcher().Wait()
			return nil
		})
	},
}

// handleLine handles one base64 payload, addressed to camera when set.
func handleLine(ctx context.Context, app *camlink.App, camera, line string) push.Result {
	data := map[string]string{push.EnvelopeBodyKey: line}
	if camera == "" {
		return app.HandleEnvelope(ctx, data)
	}
	payload, err := push.DecodeEnvelope(data)
	if err != nil {
		return push.Result{Kind: push.KindFailure, Err: err}
	}
	return app.HandlePushFor(ctx, camera, payload)
}

// readPushes handles every non-empty line of r until r is exhausted or ctx
// is done. The scan runs in its own goroutine so a blocked read does not
// hold up cancellation.
func readPushes(ctx context.Context, app *camlink.App, r io.Reader, w io.Writer, camera string) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			printResult(w, handleLine(ctx, app, camera, line))
		}
	}
}

func printResult(w io.Writer, res push.Result) {
	switch res.Kind {
	case push.KindNotification:
		fmt.Fprintf(w, "%s %s %d", res.Kind, res.Event.CameraName, res.Event.TimestampSeconds)
	case push.KindFailure:
		fmt.Fprintf(w, "%s: %v", res.Kind, res.Err)
	default:
		fmt.Fprint(w, res.Kind)
	}
	if res.Kind != push.KindFailure && res.Err != nil {
		fmt.Fprintf(w, " (%v)", res.Err)
	}
	fmt.Fprintln(w)
}

func init() {
	pushCmd.Flags().StringVar(&pushCamera, "camera", "", "decode with this camera instead of trying each paired camera")
	rootCmd.AddCommand(pushCmd)
}
