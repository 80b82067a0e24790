package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/config"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/replay"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/scorer"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/trajectory"
	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region main

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	dir := flag.String("dir", "", "replay every *.json fixture in a directory")
	capturePath := flag.String("capture", "", "write a new fixture to this path (capture mode)")
	inputPath := flag.String("input", "", "patient JSON for capture mode (first patient is used)")
	labelsPath := flag.String("labels", env.LabelsPath, "vocabulary labels JSON for capture mode")
	profilePath := flag.String("profile", env.ProfilePath, "simulation profile YAML for capture mode")
	scorerAddr := flag.String("scorer", env.ScorerAddr, "hazard scorer gRPC address for capture mode")
	synthetic := flag.Bool("synthetic", false, "capture against the built-in synthetic scorer")
	description := flag.String("description", "", "description stored in the captured fixture")
	flag.Parse()

	modes := 0
	for _, s := range []string{*fixturePath, *dir, *capturePath} {
		if s != "" {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       replay --dir path/to/fixtures")
		fmt.Fprintln(os.Stderr, "       replay --capture out.json --input patient.json [--synthetic]")
		os.Exit(2)
	}

	var exitCode int
	switch {
	case *fixturePath != "":
		exitCode = runFixtureMode(*fixturePath)
	case *dir != "":
		exitCode = runDirMode(*dir)
	default:
		exitCode = runCaptureMode(captureOptions{
			out:         *capturePath,
			input:       *inputPath,
			labels:      *labelsPath,
			profile:     *profilePath,
			scorerAddr:  *scorerAddr,
			env:         env,
			synthetic:   *synthetic,
			description: *description,
		})
	}
	os.Exit(exitCode)
}

// #endregion main

// #region replay-modes

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	out, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(map[string]replay.Outcome{filepath.Base(path): out})
}

func runDirMode(dir string) int {
	outs, err := replay.ReplayDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(outs)
}

// #endregion replay-modes

// #region capture-mode

type captureOptions struct {
	out, input, labels, profile, scorerAddr string
	env                                     config.Env
	synthetic                               bool
	description                             string
}

func runCaptureMode(o captureOptions) int {
	if o.input == "" {
		fmt.Fprintln(os.Stderr, "capture mode needs --input")
		return 2
	}
	f, err := capture(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "capture: %v\n", err)
		return 1
	}
	if err := replay.WriteFixture(o.out, f); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Printf("Wrote %s: %d steps, %s\n", o.out, len(f.Expected.Tokens), f.Expected.Reason)
	return 0
}

func capture(o captureOptions) (*replay.Fixture, error) {
	v, err := vocab.LoadLabelsFile(o.labels)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadProfile(o.profile)
	if err != nil {
		return nil, err
	}
	patients, err := trajectory.LoadPatientsFile(o.input)
	if err != nil {
		return nil, err
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients in %s", o.input)
	}
	in, err := patients[0].Resolve(v)
	if err != nil {
		return nil, err
	}

	var sc scorer.Scorer
	if o.synthetic {
		sc = scorer.NewSynthetic(v.Size(), cfg.Seed, -12, -8, 0.05)
	} else {
		g, err := scorer.NewGRPCScorer(o.scorerAddr, o.env.ScorerTimeout)
		if err != nil {
			return nil, err
		}
		defer g.Close()
		sc = scorer.NewRetrying(g, 200*time.Millisecond)
	}

	desc := o.description
	if desc == "" {
		desc = fmt.Sprintf("captured from %s (%s)", filepath.Base(o.input), patients[0].Label)
	}
	return replay.Capture(context.Background(), desc, v, sc, cfg, in)
}

// #endregion capture-mode

// #region output

// printComparison outputs a comparison table and returns exit code.
func printComparison(outs map[string]replay.Outcome) int {
	names := make([]string, 0, len(outs))
	for n := range outs {
		names = append(names, n)
	}
	sort.Strings(names)

	fmt.Printf("%-24s| %-18s| %-18s| %s\n", "Fixture", "Reason", "Tokens", "Match")
	fmt.Printf("%-24s+%-18s+%-18s+%s\n",
		"------------------------", "-------------------", "-------------------", "------")

	matches := 0
	for _, n := range names {
		o := outs[n]
		match := "DIFF"
		if o.Match {
			match = "OK"
			matches++
		}
		fmt.Printf("%-24s| %-18s| %-18s| %s\n", n, o.Result.Reason, fmt.Sprint(o.Tokens), match)
		for _, d := range o.Diffs {
			fmt.Printf("    %s\n", d)
		}
	}

	diverge := len(names) - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", len(names), matches, diverge)
	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
