package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/njchilds90/scrbench"
	"github.com/njchilds90/scrbench/store"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog equations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range a.catalog.Names() {
				raw, err := a.catalog.RawExpression(name)
				if err != nil {
					return err
				}
				out, err := a.catalog.OutputName(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s = %s\n", name, out, raw)
			}
			return w.Flush()
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info EQUATION",
		Short: "Show an equation, its sampling ranges and constraints as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.benchmark(args[0])
			if err != nil {
				return err
			}
			info, err := scrbench.Describe(b, a.catalog)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
}

type generateParams struct {
	SampleSize      int     `json:"sample_size"`
	NoiseLevel      float64 `json:"noise_level"`
	Patience        int     `json:"patience"`
	Seed            *uint64 `json:"seed,omitempty"`
	UseDisplayNames bool    `json:"use_display_names"`
}

func (a *app) generateCmd() *cobra.Command {
	var (
		p       generateParams
		seed    uint64
		out     string
		testOut string
	)
	cmd := &cobra.Command{
		Use:   "generate EQUATION",
		Short: "Generate a training table as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("sample-size") {
				p.SampleSize = a.cfg.SampleSize
			}
			if !flags.Changed("noise") {
				p.NoiseLevel = a.cfg.NoiseLevel
			}
			if !flags.Changed("patience") {
				p.Patience = a.cfg.Patience
			}
			if !flags.Changed("display-names") {
				p.UseDisplayNames = a.cfg.UseDisplayNames
			}
			if flags.Changed("seed") {
				p.Seed = &seed
			}

			b, err := a.benchmark(args[0])
			if err != nil {
				return err
			}
			train, test, err := b.CreateDataframe(p.SampleSize, p.NoiseLevel, p.Seed, p.Patience, p.UseDisplayNames)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				err = train.WriteCSV(cmd.OutOrStdout())
			} else {
				err = train.WriteCSVFile(out)
			}
			if err != nil {
				return err
			}
			if testOut != "" {
				if test == nil {
					return fmt.Errorf("no reference table for %s: set reference_dir", args[0])
				}
				if err := test.WriteCSVFile(testOut); err != nil {
					return err
				}
			}

			a.archive(cmd.Context(), args[0], store.KindDataset, p, map[string]any{
				"rows":    train.Rows(),
				"columns": train.Columns,
				"output":  out,
			})
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&p.SampleSize, "sample-size", 0, "rows to generate (default from config)")
	f.Float64Var(&p.NoiseLevel, "noise", 0, "noise level in [0, 1] (default from config)")
	f.IntVar(&p.Patience, "patience", 0, "resampling rounds (default from config)")
	f.Uint64Var(&seed, "seed", 0, "seed the sampler for a reproducible table")
	f.BoolVar(&p.UseDisplayNames, "display-names", false, "label columns with display names")
	f.StringVarP(&out, "out", "o", "", "training CSV path, - or empty for stdout")
	f.StringVar(&testOut, "test-out", "", "also write the reference test table here")
	return cmd
}

type checkParams struct {
	Candidate       string `json:"candidate"`
	Backend         string `json:"backend"`
	UseDisplayNames bool   `json:"use_display_names"`
}

func (a *app) checkCmd() *cobra.Command {
	var (
		p      checkParams
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "check EQUATION CANDIDATE",
		Short: "Check a candidate expression against the equation's derivative constraints",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("backend") {
				p.Backend = a.cfg.Backend
			}
			if !flags.Changed("display-names") {
				p.UseDisplayNames = a.cfg.UseDisplayNames
			}
			p.Candidate = args[1]

			backend, err := scrbench.ParseBackend(p.Backend)
			if err != nil {
				return err
			}
			b, err := a.benchmark(args[0])
			if err != nil {
				return err
			}
			res, err := b.CheckConstraints(p.Candidate, backend, p.UseDisplayNames)
			if err != nil {
				return err
			}
			a.archive(cmd.Context(), args[0], store.KindCheck, p, map[string]any{
				"passed":     res.Passed,
				"violations": res.ViolatedIDs(),
			})

			w := cmd.OutOrStdout()
			if res.Passed {
				fmt.Fprintln(w, "passed")
				return nil
			}
			fmt.Fprintf(w, "violated %d constraints\n", len(res.Violations))
			for _, c := range res.Violations {
				fmt.Fprintf(w, "  %s, observed %s\n", c, res.Observed[c.ID])
			}
			if strict {
				return fmt.Errorf("%s violates %s", p.Candidate, strings.Join(res.ViolatedIDs(), ", "))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&p.Backend, "backend", "", "symbolic or autodiff (default from config)")
	f.BoolVar(&p.UseDisplayNames, "display-names", false, "candidate uses display variable names")
	f.BoolVar(&strict, "strict", false, "exit non-zero when a constraint is violated")
	return cmd
}

func (a *app) stationaryCmd() *cobra.Command {
	var excludeSaddle bool
	cmd := &cobra.Command{
		Use:   "stationary EQUATION",
		Short: "List points where the equation's gradient vanishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.benchmark(args[0])
			if err != nil {
				return err
			}
			eq := b.Equation()
			names := eq.VariableNames(true)
			w := cmd.OutOrStdout()
			points := eq.FindStationaryPoints(excludeSaddle)
			if len(points) == 0 {
				fmt.Fprintln(w, "no stationary points")
				return nil
			}
			for _, p := range points {
				parts := make([]string, len(p))
				for i, v := range p {
					parts[i] = fmt.Sprintf("%s=%g", names[i], v)
				}
				fmt.Fprintln(w, strings.Join(parts, " "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&excludeSaddle, "exclude-saddle", false, "drop saddle points")
	return cmd
}

func (a *app) runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [EQUATION]",
		Short: "List archived runs, newest last",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			runs, err := a.store.ListRuns(cmd.Context(), name)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.Equation, r.Kind, r.Outcome)
			}
			return w.Flush()
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
