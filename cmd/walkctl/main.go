package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/storage"
	"github.com/san-kum/dcmwalk/internal/viz"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gopkg.in/yaml.v3"
)

var (
	dataDir    string
	logLevel   string
	logJSON    bool
	configFile string
	preset     string
	duration   float64
	goalX      float64
	goalY      float64
	seed       int64
	noise      float64
	noSave     bool
	jsonOut    string
	csvOut     string
	pngDir     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "walkctl",
		Short:         "DCM walking controller lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".dcmwalk", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "walk to the goal in simulation and store the run",
		RunE:  runSimulation,
	}
	addScenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "walk in simulation with a live terminal view",
		RunE:  runLive,
	}
	addScenarioFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot DCM tracking of a run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run trajectories to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&jsonOut, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run ticks to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&csvOut, "out", "o", "", "output file (default stdout)")

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id]",
		Short: "render path and tracking plots of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  exportPNG,
	}
	exportPNGCmd.Flags().StringVarP(&pngDir, "out", "o", ".", "output directory")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list scenario presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [file]",
		Short: "print the effective configuration, or write it to file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showConfig,
	}
	addScenarioFlags(configCmd)

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, exportJSONCmd, exportCSVCmd, exportPNGCmd, presetsCmd, configCmd)
	rootCmd.AddCommand(analyzeCommand(), sweepCommand(), ensembleCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogging() error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	if logJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}

func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "scenario preset")
	cmd.Flags().Float64Var(&duration, "time", 0, "simulated duration in seconds")
	cmd.Flags().Float64Var(&goalX, "goal-x", 0, "goal x in meters")
	cmd.Flags().Float64Var(&goalY, "goal-y", 0, "goal y in meters")
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed")
	cmd.Flags().Float64Var(&noise, "noise", 0, "feedback noise standard deviation")
}

// scenario resolves the configuration: preset, then config file, then
// flags that were set explicitly.
func scenario(cmd *cobra.Command) (string, *config.Config, error) {
	name := "custom"
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return "", nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		name = preset
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		name = trimExt(filepath.Base(configFile))
	}

	flags := cmd.Flags()
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("goal-x") {
		cfg.Sim.Goal[0] = goalX
	}
	if flags.Changed("goal-y") {
		cfg.Sim.Goal[1] = goalY
	}
	if flags.Changed("seed") {
		cfg.Sim.Seed = seed
	}
	if flags.Changed("noise") {
		cfg.Sim.NoiseStd = noise
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}
	return name, cfg, nil
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	name, cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("walking %s to (%.2f, %.2f)...\n", name, cfg.Sim.Goal[0], cfg.Sim.Goal[1])
	start := time.Now()
	res, err := sim.New(name, cfg).Run(ctx)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed)
	if res.Err != nil {
		fmt.Printf("stopped early: %v\n", res.Err)
	}
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(res)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}
	fmt.Printf("ticks: %d\n", len(res.Records))
	fmt.Printf("merges: %d  late merges: %d  pushes: %d  qp failures: %d\n",
		res.Stats.Merges, res.Stats.LateMerges, res.Stats.Pushes, res.Stats.QPFailures)
	printMetrics(res.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	name, cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	// the live view owns the terminal
	logrus.SetOutput(os.Stderr)
	if logrus.GetLevel() > logrus.WarnLevel {
		logrus.SetLevel(logrus.WarnLevel)
	}

	ctx, cancel := signalContext()
	defer cancel()

	feed := viz.NewFeeder(ctx)
	s := sim.New(name, cfg)
	s.AddObserver(feed)

	errc := make(chan error, 1)
	go func() {
		defer feed.Close()
		_, err := s.Run(ctx)
		errc <- err
	}()

	feet := viz.Feet{Left: cfg.Step.LeftPolygon, Right: cfg.Step.RightPolygon}
	model := viz.NewLive(name, feed.Records(), cancel, feet)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		cancel()
		return err
	}
	cancel()
	if err := <-errc; err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tTICKS\tMERGES\tPUSHES\tDCM RMS\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.4f\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Ticks,
			run.Stats.Merges,
			run.Stats.Pushes,
			run.Metrics["dcm_rms"],
			status,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []sim.Record, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		return nil, nil, err
	}
	recs := series.Records()
	if len(recs) == 0 {
		return nil, nil, fmt.Errorf("run %s has no ticks", runID)
	}
	return meta, recs, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, recs, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n\n", len(recs))

	series := []struct {
		caption string
		pick    func(sim.Record) float64
	}{
		{"dcm x (m)", func(r sim.Record) float64 { return r.DCM.X }},
		{"dcm y (m)", func(r sim.Record) float64 { return r.DCM.Y }},
		{"dcm error (m)", func(r sim.Record) float64 { return r2.Norm(r2.Sub(r.DCM, r.DCMRef)) }},
		{"zmp y (m)", func(r sim.Record) float64 { return r.ZMP.Y }},
		{"com speed (m/s)", func(r sim.Record) float64 { return r.Speed }},
	}
	for _, s := range series {
		data := make([]float64, len(recs))
		for i, r := range recs {
			data[i] = s.pick(r)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(s.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// output opens path, or stdout when it is empty.
func output(path string) (*os.File, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, recs, err := loadRun(args[0])
	if err != nil {
		return err
	}
	res := &sim.Result{
		Name:    meta.Scenario,
		Config:  meta.Config,
		Records: recs,
		Stats:   meta.Stats,
		Metrics: meta.Metrics,
	}
	if meta.Error != "" {
		res.Err = fmt.Errorf("%s", meta.Error)
	}

	f, closeFn, err := output(jsonOut)
	if err != nil {
		return err
	}
	if err := storage.ExportJSON(f, res); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, recs, err := loadRun(args[0])
	if err != nil {
		return err
	}
	f, closeFn, err := output(csvOut)
	if err != nil {
		return err
	}
	if err := storage.WriteCSV(f, recs); err != nil {
		closeFn()
		return err
	}
	return closeFn()
}

func exportPNG(cmd *cobra.Command, args []string) error {
	meta, recs, err := loadRun(args[0])
	if err != nil {
		return err
	}
	cfg := meta.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := os.MkdirAll(pngDir, 0755); err != nil {
		return err
	}

	feet := viz.Feet{Left: cfg.Step.LeftPolygon, Right: cfg.Step.RightPolygon}
	path, err := viz.PathPlot(meta.ID, recs, feet)
	if err != nil {
		return err
	}
	if err := savePNG(filepath.Join(pngDir, meta.ID+"_path.png"), path, 10, 4); err != nil {
		return err
	}
	for _, axis := range []string{"x", "y"} {
		p, err := viz.TrackingPlot(meta.ID+" dcm "+axis, recs, axis)
		if err != nil {
			return err
		}
		if err := savePNG(filepath.Join(pngDir, meta.ID+"_dcm_"+axis+".png"), p, 8, 4); err != nil {
			return err
		}
	}
	return nil
}

func savePNG(name string, p *plot.Plot, w, h float64) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := viz.WritePNG(bw, p, w, h); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	fmt.Printf("wrote %s\n", name)
	return f.Close()
}

func showConfig(cmd *cobra.Command, args []string) error {
	_, cfg, err := scenario(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if err := config.Save(args[0], cfg); err != nil {
			return err
		}
		fmt.Printf("saved %s\n", args[0])
		return nil
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
