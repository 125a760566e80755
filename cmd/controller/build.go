package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/replay"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/rpc"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/seu"
)

// #region build
func buildCmd() *cobra.Command {
	var seuID, fixturePath, remote string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build cubes once: one stored unit (--seu) or every unit in a replay fixture (--fixture)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (seuID == "") == (fixturePath == "") {
				return fmt.Errorf("exactly one of --seu or --fixture is required")
			}
			var p orchestrator.Pipeline
			if remote != "" {
				client, err := rpc.NewClient(remote)
				if err != nil {
					return err
				}
				defer client.Close()
				p = client
			} else {
				rt, err := openRuntime()
				if err != nil {
					return err
				}
				defer rt.Close()
				p = rt.orch
			}

			ctx, stop := signalContext()
			defer stop()

			out := cmd.OutOrStdout()
			if seuID != "" {
				resp, err := p.BuildCube(ctx, seuID)
				if err != nil {
					return err
				}
				printBuilt(out, resp)
				return nil
			}
			return buildFixture(ctx, out, p, fixturePath)
		},
	}

	cmd.Flags().StringVar(&seuID, "seu", "", "build the cube for one stored unit")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "ingest and build every unit in a replay fixture")
	cmd.Flags().StringVar(&remote, "remote", "", "drive a running controller's gRPC address instead of the local database")
	return cmd
}

// buildFixture registers each fixture unit through the pipeline and builds
// its cube. Incomplete or rejected units are reported, not fatal.
func buildFixture(ctx context.Context, out io.Writer, p orchestrator.Pipeline, path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%-24s| %-15s| %s\n", "SEU", "Outcome", "Score")
	fmt.Fprintf(out, "%-24s+%-15s+%s\n", "------------------------", "----------------", "------")

	var built, failed int
	for _, u := range f.Units {
		if err := ingestUnit(ctx, p, u); err != nil {
			return fmt.Errorf("ingest %s: %w", u.SEUID, err)
		}
		resp, err := p.BuildCube(ctx, u.SEUID)
		switch {
		case err == nil:
			built++
			fmt.Fprintf(out, "%-24s| %-15s| %.3f\n", u.SEUID, resp.Cube.M.CognitiveMode, resp.Cube.M.ModeScore)
		case errors.Is(err, seu.ErrIncomplete):
			failed++
			fmt.Fprintf(out, "%-24s| %-15s| -\n", u.SEUID, replay.ActionIncomplete)
		case errors.Is(err, orchestrator.ErrCubeRejected):
			failed++
			fmt.Fprintf(out, "%-24s| %-15s| -\n", u.SEUID, replay.ActionEvalReject)
		default:
			return fmt.Errorf("build %s: %w", u.SEUID, err)
		}
	}

	fmt.Fprintf(out, "\nSummary: %d units, %d built, %d not built\n", len(f.Units), built, failed)
	return nil
}

func ingestUnit(ctx context.Context, p orchestrator.Pipeline, u replay.FixtureUnit) error {
	t := orchestrator.SEUTime{TsStart: u.TsStart, TsEnd: u.TsEnd}
	if u.DurationMs != nil {
		t.DurationMs = *u.DurationMs
	}
	if _, err := p.CreateSEU(ctx, orchestrator.CreateSEURequest{
		SEUID:    u.SEUID,
		Time:     t,
		DeviceID: "fixture",
	}); err != nil {
		return err
	}
	for _, ch := range seu.Channels {
		raw, ok := u.Channels[string(ch)]
		if !ok {
			continue
		}
		req := orchestrator.RegisterRawRequest{
			SEUID:     u.SEUID,
			ChannelID: string(ch),
			TsStart:   u.TsStart,
			TsEnd:     u.TsEnd,
			RawRef:    raw,
		}
		if u.DurationMs != nil {
			req.Extra = map[string]any{"duration_ms": *u.DurationMs}
		}
		if _, err := p.RegisterRaw(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

func printBuilt(out io.Writer, resp orchestrator.BuildCubeResponse) {
	m := resp.Cube.M
	fmt.Fprintf(out, "SEU:        %s\n", resp.SEUID)
	fmt.Fprintf(out, "Status:     %s\n", resp.Status)
	fmt.Fprintf(out, "Mode:       %s (%s) %.3f\n", m.CognitiveMode, m.ModeLabel, m.ModeScore)
	fmt.Fprintf(out, "Narrative:  %s\n", m.Narrative.EN)
	fmt.Fprintf(out, "Input:      %s\n", resp.Cube.InputHash)
}
// #endregion build
