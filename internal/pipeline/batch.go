package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// BatchOptions control ProcessBatch.
type BatchOptions struct {
	Force       bool
	StopOnError bool
}

// ItemError pairs an identifier with its failure message.
type ItemError struct {
	Identifier string `json:"identifier"`
	Stage      Stage  `json:"stage,omitempty"`
	Error      string `json:"error"`
	Err        error  `json:"-"`
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
	Results   []Result    `json:"results"`
	CostUSD   float64     `json:"cost_usd"`
	// Stopped is set when the batch ended before every identifier was tried.
	Stopped bool `json:"stopped,omitempty"`
}

// ProcessBatch processes identifiers in order. Failures are collected and
// processing continues unless opts.StopOnError is set. Cancelling ctx stops
// the batch between items and returns ctx.Err() with the partial result.
func (p *Processor) ProcessBatch(ctx context.Context, ids []string, opts BatchOptions) (BatchResult, error) {
	var br BatchResult
	p.logger.Info("batch started", zap.Int("count", len(ids)), zap.Bool("force", opts.Force))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			br.Stopped = true
			return br, err
		}
		p.logger.Info("batch item", zap.Int("n", i+1), zap.Int("of", len(ids)), zap.String("identifier", id))

		res, err := p.Process(ctx, id, Options{Force: opts.Force})
		br.Results = append(br.Results, res)
		br.CostUSD += res.CostUSD

		switch {
		case err != nil:
			br.Failed++
			br.Errors = append(br.Errors, ItemError{Identifier: id, Stage: StageOf(err), Error: err.Error(), Err: err})
			if opts.StopOnError {
				br.Stopped = i < len(ids)-1
				p.logger.Warn("stopping batch on error", zap.String("identifier", id))
				return br, nil
			}
		case res.Status == StatusSkipped:
			br.Skipped++
		default:
			br.Processed++
		}
	}

	p.logger.Info("batch complete",
		zap.Int("processed", br.Processed),
		zap.Int("skipped", br.Skipped),
		zap.Int("failed", br.Failed))
	return br, nil
}

// ReadIdentifiers reads one identifier per line, ignoring blank lines and
// lines starting with '#'.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading identifiers: %w", err)
	}
	return ids, nil
}
