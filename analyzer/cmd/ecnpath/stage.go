package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecnpath/ecnpath/analyzer/internal/metrics"
	"github.com/ecnpath/ecnpath/analyzer/internal/obs"
	"github.com/ecnpath/ecnpath/analyzer/internal/pipeline"
)

type stageFlags struct {
	metadataIn  []string
	metadataOut string
	interest    bool
}

func newStageCmd(a *app, stage pipeline.Stage) *cobra.Command {
	var f stageFlags
	cmd := &cobra.Command{
		Use:   stage.Name + " [files...]",
		Short: fmt.Sprintf("derive %s verdicts (marks %s)", stage.Name, stage.Marker),
		Long: fmt.Sprintf(`Reads observation lines from the given files, or stdin when none are given,
and writes one output set of verdicts to stdout.

Input sets must carry the metadata key %q. With --interest the command
reads one set's metadata from stdin instead and exits 0 if it would run on
that set, 1 if not.%s`, stage.Requires, vantageHelp(stage)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.interest {
				return a.interest(stage, args)
			}
			return a.runStage(cmd, stage, f, args)
		},
	}

	cmd.Flags().StringArrayVar(&f.metadataIn, "metadata-in", nil, "input set metadata JSON file (repeatable)")
	cmd.Flags().StringVar(&f.metadataOut, "metadata-out", "", "write the output set metadata to this file")
	cmd.Flags().BoolVar(&f.interest, "interest", false, "read set metadata from stdin and report applicability in the exit status")
	return cmd
}

// interest answers whether stage applies to the set whose metadata is on
// stdin.
func (a *app) interest(stage pipeline.Stage, args []string) error {
	if len(args) > 0 {
		return &exitError{code: exitInternal, err: fmt.Errorf("interest: unexpected arguments %q", args)}
	}
	md, err := obs.ReadMetadata(a.stdin)
	if err != nil {
		return &exitError{code: exitInternal, err: fmt.Errorf("interest: %w", err)}
	}

	ok := stage.Interested(md.Conditions(), md)
	a.logger.Debug("interest: evaluated",
		zap.String("stage", stage.Name),
		zap.Strings("conditions", md.Conditions()),
		zap.Bool("interested", ok),
	)
	if !ok {
		return &exitError{code: exitNotInterested}
	}
	return nil
}

func (a *app) runStage(cmd *cobra.Command, stage pipeline.Stage, f stageFlags, args []string) error {
	runID := uuid.NewString()
	log := a.logger.With(zap.String("run_id", runID))

	sets, err := readInputMetadata(f.metadataIn)
	if err != nil {
		return err
	}
	inherit := mergeSets(sets)

	src, err := openSources(args, a.stdin)
	if err != nil {
		return err
	}
	defer src.Close()

	if stage.ByVantage {
		vps := vantagesFor(src.Inputs(), sets, inherit)
		src.setVantages(vps)
		log.Debug("ecnpath: vantage points assigned", zap.Strings("vantages", vps))
	}

	var meta bytes.Buffer
	var opts []obs.WriterOption
	if f.metadataOut != "" {
		opts = append(opts, obs.WithMetadataSink(&meta))
	}
	w := obs.NewWriter(a.stdout, opts...)

	r := &pipeline.Runner{
		Stage:         stage,
		Logger:        log,
		Workers:       a.cfg.Analysis.Workers,
		ProgressEvery: a.cfg.Analysis.ProgressEvery,
		AnalyzerURL:   a.cfg.Analysis.AnalyzerURL,
		RunID:         runID,
		Inherit:       inherit,
	}

	log.Info("ecnpath: run starting",
		zap.String("stage", stage.Name),
		zap.Int("inputs", src.Inputs()),
		zap.Int("workers", r.Workers),
	)
	started := time.Now()
	sum, runErr := r.Run(cmd.Context(), src, w)
	if runErr == nil && f.metadataOut != "" {
		// the file only appears for a committed set
		if err := os.WriteFile(f.metadataOut, meta.Bytes(), 0o644); err != nil {
			runErr = fmt.Errorf("metadata-out: %w", err)
		}
	}

	if err := a.writeMetrics(metrics.Run{
		Stage:    stage.Name,
		Read:     sum.Read,
		Targets:  sum.Targets,
		Verdicts: sum.Verdicts,
		Duration: time.Since(started),
		Err:      runErr,
		Finished: time.Now(),
	}); err != nil {
		log.Warn("ecnpath: metrics not written", zap.Error(err))
	}
	return runErr
}

func (a *app) writeMetrics(run metrics.Run) error {
	if a.cfg.Metrics.Textfile == "" {
		return nil
	}
	path := a.cfg.Metrics.Textfile
	m := metrics.New(prometheus.NewRegistry())

	prev, err := metrics.ReadTextfile(path)
	if err != nil {
		a.logger.Warn("ecnpath: previous metrics unreadable, counters restart", zap.String("path", path), zap.Error(err))
	} else {
		m.Restore(prev)
	}

	m.Record(run)
	return m.WriteTextfile(path)
}

// readInputMetadata reads every --metadata-in file, in order.
func readInputMetadata(paths []string) ([]obs.SetInfo, error) {
	sets := make([]obs.SetInfo, 0, len(paths))
	for _, p := range paths {
		md, err := readMetadataFile(p)
		if err != nil {
			return nil, err
		}
		sets = append(sets, obs.SetInfo{Link: p, Metadata: md})
	}
	return sets, nil
}

// mergeSets merges the input set metadata. No sets yields nil.
func mergeSets(sets []obs.SetInfo) obs.Metadata {
	if len(sets) == 0 {
		return nil
	}
	return obs.MergeMetadata(sets...)
}

// vantagesFor names the vantage point of each of n inputs. With one
// metadata file per input they pair up in order; otherwise every input
// takes the vantage the merged metadata carries, if any.
func vantagesFor(n int, sets []obs.SetInfo, merged obs.Metadata) []string {
	vps := make([]string, n)
	for i := range vps {
		if len(sets) == n {
			vps[i] = sets[i].Metadata.Vantage()
		} else {
			vps[i] = merged.Vantage()
		}
	}
	return vps
}

func vantageHelp(stage pipeline.Stage) string {
	if !stage.ByVantage {
		return ""
	}
	return fmt.Sprintf(`

Targets are kept apart per vantage point. When an input set's metadata
names one under %q, its paths are rewritten to start there. Give one
--metadata-in per input, in the same order, to pair them.`, obs.KeyVantage)
}

func readMetadataFile(path string) (obs.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("metadata-in: %w", err)
	}
	defer f.Close()
	md, err := obs.ReadMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("metadata-in %s: %w", path, err)
	}
	return md, nil
}
