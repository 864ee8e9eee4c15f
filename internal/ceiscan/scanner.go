// Package ceiscan wires the tagger, CFG builder and ordering analyzer into
// a scanner over a collection of contract functions.
package ceiscan

import (
	"runtime"
	"time"

	"ceiscan/internal/cfg"
	"ceiscan/internal/ir"
	"ceiscan/internal/order"
	"ceiscan/internal/report"
	"ceiscan/internal/tagger"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scanner runs the CEI ordering analysis function by function. Functions are
// independent: each worker reads only its own function and the shared
// read-only classification table, and writes only its own result slot.
type Scanner struct {
	table   *tagger.Table
	workers int
}

func NewScanner(table *tagger.Table, workers int) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scanner{table: table, workers: workers}
}

// Run analyzes every function and merges the per-function results into one
// report. A malformed function surfaces as an analysis error in the report
// and never aborts the rest of the run.
func (s *Scanner) Run(functions []*ir.Function) *report.Report {
	startTime := time.Now()
	results := make([]report.Result, len(functions))

	var eg errgroup.Group
	eg.SetLimit(s.workers)
	for i := range functions {
		i, fn := i, functions[i]
		eg.Go(func() error {
			results[i] = s.scanFunction(fn)
			return nil
		})
	}
	// Workers never return errors; failures are per-function results.
	_ = eg.Wait()

	rep := report.New(results)
	log.Infof("scanned %d functions in %s: %d findings, %d advisories, %d errors",
		len(functions), time.Since(startTime), len(rep.Findings), len(rep.Advisories), len(rep.Errors))
	return rep
}

func (s *Scanner) scanFunction(fn *ir.Function) report.Result {
	log.Infof("analyzing function %s", fn.Name)
	tagged, advisories := tagger.Tag(s.table, fn)
	result := report.Result{Function: fn.Name, Advisories: advisories}

	graph, err := cfg.Build(tagged)
	if err != nil {
		var analysisErr *cfg.AnalysisError
		if !errors.As(err, &analysisErr) {
			analysisErr = &cfg.AnalysisError{Function: fn.Name, Reason: err.Error()}
		}
		log.Warnf("skipping %s: %v", fn.Name, analysisErr)
		result.Err = analysisErr
		return result
	}

	result.Findings = order.Analyze(graph)
	return result
}

// BuildGraphs assembles the CFG of every function without running the
// ordering analysis; malformed functions are skipped with a warning.
func (s *Scanner) BuildGraphs(functions []*ir.Function) []*cfg.Graph {
	var graphs []*cfg.Graph
	for _, fn := range functions {
		tagged, _ := tagger.Tag(s.table, fn)
		graph, err := cfg.Build(tagged)
		if err != nil {
			log.Warnf("skipping %s: %v", fn.Name, err)
			continue
		}
		graphs = append(graphs, graph)
	}
	return graphs
}
