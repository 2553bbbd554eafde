package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dcmwalk/internal/analysis"
	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

func analyzeCommand() *cobra.Command {
	var axis int
	cmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "gait frequency, push recovery and phase portrait of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, recs, err := loadRun(args[0])
			if err != nil {
				return err
			}
			dt := 0.01
			threshold := 0.03
			if meta.Config != nil {
				dt = meta.Config.Period
				threshold = r2.Norm(meta.Config.Push.DCMErrorThreshold.R2())
			}

			fmt.Printf("analysis: %s\n\n", meta.ID)

			sway := make([]float64, len(recs))
			times := make([]float64, len(recs))
			errs := make([]float64, len(recs))
			for i, r := range recs {
				sway[i] = r.CoM.Y
				times[i] = r.Time
				errs[i] = r2.Norm(r2.Sub(r.DCM, r.DCMRef))
			}

			ps := analysis.PowerSpectrum(sway)
			if len(ps) > 8 {
				graph := asciigraph.Plot(ps[:len(ps)/4],
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption("lateral sway spectrum"),
				)
				fmt.Println(graph)
				fmt.Println()
			}
			if f, err := analysis.DominantFrequency(sway, dt); err == nil && f > 0 {
				fmt.Printf("sway frequency: %.3f hz (step period %.3f s)\n", f, 0.5/f)
			}

			fmt.Printf("dcm error mean: %.4f m\n", stat.Mean(errs, nil))
			if rate, ok := analysis.RecoveryRate(times, errs, threshold/4); ok {
				fmt.Printf("recovery rate: %.3f 1/s\n", rate)
			}
			if rt, ok := analysis.RecoveryTime(times, errs, threshold); ok {
				fmt.Printf("recovery time: %.3f s\n", rt)
			} else {
				fmt.Println("recovery time: not recovered")
			}

			portrait := analysis.PhasePortrait(recs, axis)
			fmt.Printf("\nphase portrait: %s\n", portrait.Label)
			fmt.Println(portrait.Braille(60, 20))
			return nil
		},
	}
	cmd.Flags().IntVar(&axis, "axis", 1, "phase portrait axis (0 for x, 1 for y)")
	return cmd
}

func sweepCommand() *cobra.Command {
	var (
		at, length float64
		dirX, dirY float64
		forces     []float64
		workers    int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "push the robot with increasing forces and report which it survives",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := scenario(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			points, err := analysis.CaptureSweep(ctx, cfg, at, length, r2.Vec{X: dirX, Y: dirY}, forces, workers)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FORCE\tPUSHES\tMAX ERR\tRECOVERED")
			for _, p := range points {
				fmt.Fprintf(w, "%.1fN\t%d\t%.4f\t%v\n", p.Force, p.Pushes, p.MaxError, p.Recovered)
			}
			return w.Flush()
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().Float64Var(&at, "at", 4.3, "push start time in seconds")
	cmd.Flags().Float64Var(&length, "push-duration", 0.1, "push duration in seconds")
	cmd.Flags().Float64Var(&dirX, "dir-x", 1, "push direction x")
	cmd.Flags().Float64Var(&dirY, "dir-y", 0, "push direction y")
	cmd.Flags().Float64SliceVar(&forces, "forces", []float64{20, 40, 60, 80, 100}, "push magnitudes in newtons")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0 for one per CPU)")
	return cmd
}

func ensembleCommand() *cobra.Command {
	var (
		runs    int
		workers int
	)
	cmd := &cobra.Command{
		Use:   "ensemble",
		Short: "repeat a scenario with different noise seeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, cfg, err := scenario(cmd)
			if err != nil {
				return err
			}
			if cfg.Sim.NoiseStd == 0 {
				fmt.Println("note: noise is zero, all runs will be identical")
			}
			ctx, cancel := signalContext()
			defer cancel()

			results, err := sim.NewEnsemble(sim.Seeds(name, cfg, runs, cfg.Sim.Seed), workers).Run(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tMERGES\tPUSHES\tDCM RMS\tDCM MAX\tSTATUS")
			rms := make([]float64, 0, len(results))
			for _, res := range results {
				status := "ok"
				if res.Err != nil {
					status = res.Err.Error()
				}
				rms = append(rms, res.Metrics["dcm_rms"])
				fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\t%.4f\t%s\n",
					res.Name, res.Stats.Merges, res.Stats.Pushes, res.Metrics["dcm_rms"], res.Metrics["dcm_max"], status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			mean, std := stat.MeanStdDev(rms, nil)
			fmt.Printf("\ndcm rms: %.4f ± %.4f\n", mean, std)
			return nil
		},
	}
	addScenarioFlags(cmd)
	cmd.Flags().IntVar(&runs, "runs", 8, "number of runs")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (0 for one per CPU)")
	return cmd
}
