// Package consult runs spreadsheets through the remote eligibility API
// and manages the queue that feeds them to it one at a time.
package consult

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadops/leadbase-cli/internal/model"
	"github.com/leadops/leadbase-cli/internal/normalize"
	"github.com/leadops/leadbase-cli/internal/progress"
	"github.com/leadops/leadbase-cli/internal/resilience"
	"github.com/leadops/leadbase-cli/internal/sheet"
	"github.com/leadops/leadbase-cli/pkg/eligibility"
)

const (
	defaultBatchSize   = 20000
	defaultMaxAttempts = 3
	defaultRetryDelay  = 6 * time.Minute
	defaultCooldown    = 3 * time.Minute

	// Fixed result column when no header name is configured. The dialer
	// layout reserves the third column for the consultation verdict.
	defaultResultIndex = 2
)

// Options configures a consultation run.
type Options struct {
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	Cooldown    time.Duration
	Mode        model.CredentialMode
	// ResultColumn names the header of the result column. Empty selects
	// the third column of the sheet.
	ResultColumn string
	Primary      eligibility.Credentials
	Secondary    eligibility.Credentials
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.Cooldown <= 0 {
		o.Cooldown = defaultCooldown
	}
	return o
}

// Engine consults one spreadsheet at a time against the eligibility API.
type Engine struct {
	client   eligibility.Client
	opts     Options
	reporter progress.Reporter
}

// NewEngine builds a consultation engine.
func NewEngine(client eligibility.Client, opts Options, reporter progress.Reporter) *Engine {
	if reporter == nil {
		reporter = &progress.ZapReporter{Op: "consult"}
	}
	return &Engine{client: client, opts: opts.withDefaults(), reporter: reporter}
}

// batch is one API-sized slice of a sheet: padded identifiers plus the
// rows each identifier came from.
type batch struct {
	ids  []string
	rows map[string][]int
}

// ConsultFile marks every unconsulted row of the sheet as "available" or
// "client" according to the remote eligibility API. The workbook is saved
// after each batch, so an aborted run keeps its completed batches.
func (e *Engine) ConsultFile(ctx context.Context, path string) (model.ConsultSummary, error) {
	summary := model.ConsultSummary{File: path}

	s, err := sheet.Open(path)
	if err != nil {
		return summary, eris.Wrap(err, "consult: open sheet")
	}
	summary.TotalRows = len(s.Rows)

	idCol := s.HeaderIndex("cnpj")
	if idCol < 0 {
		idCol = s.HeaderIndex("chave")
	}
	if idCol < 0 {
		return summary, eris.Errorf("consult: %s has no identifier column", path)
	}

	resultCol, err := e.resultColumn(s, path)
	if err != nil {
		return summary, err
	}

	batches := e.collect(s, idCol, resultCol, &summary)

	for i, b := range batches {
		if i > 0 {
			// Quota-friendly pause, skipped after the final batch below.
			select {
			case <-ctx.Done():
				return summary, eris.Wrap(ctx.Err(), "consult: cancelled")
			case <-time.After(e.opts.Cooldown):
			}
		}

		zap.L().Info("consult: batch start",
			zap.String("file", path),
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("identifiers", len(b.ids)))

		matched, err := e.queryBatch(ctx, i, b.ids)
		if err != nil {
			if ctx.Err() != nil {
				return summary, eris.Wrap(ctx.Err(), "consult: cancelled")
			}
			summary.Abandoned++
			zap.L().Warn("consult: batch abandoned after retries",
				zap.String("file", path),
				zap.Int("batch", i+1),
				zap.Error(err))
			continue
		}

		for id, rows := range b.rows {
			verdict := model.ResultClient
			if _, ok := matched[id]; ok {
				verdict = model.ResultAvailable
				summary.Available += len(rows)
			} else {
				summary.Clients += len(rows)
			}
			for _, row := range rows {
				s.SetCell(row, resultCol, verdict)
			}
			summary.Consulted += len(rows)
		}
		summary.Batches++

		if err := s.SaveAtomic(path); err != nil {
			return summary, eris.Wrap(err, "consult: save sheet")
		}

		e.reporter.Progress(progress.Update{
			FileID:  path,
			Current: i + 1,
			Total:   len(batches),
		})
	}

	zap.L().Info("consult: file done",
		zap.String("file", path),
		zap.Int("consulted", summary.Consulted),
		zap.Int("available", summary.Available),
		zap.Int("clients", summary.Clients),
		zap.Int("abandoned", summary.Abandoned))
	return summary, nil
}

func (e *Engine) resultColumn(s *sheet.Sheet, path string) (int, error) {
	if e.opts.ResultColumn != "" {
		if col := s.HeaderIndex(e.opts.ResultColumn); col >= 0 {
			return col, nil
		}
		return s.EnsureColumn(e.opts.ResultColumn), nil
	}
	if len(s.Header) <= defaultResultIndex {
		return 0, eris.Errorf("consult: %s has no result column", path)
	}
	return defaultResultIndex, nil
}

// collect walks the sheet and groups the rows still needing consultation
// into API-sized batches. Rows with a verdict already in place and rows
// without a single digit in the identifier cell are left alone.
func (e *Engine) collect(s *sheet.Sheet, idCol, resultCol int, summary *model.ConsultSummary) []batch {
	var batches []batch
	current := batch{rows: make(map[string][]int)}

	for i := range s.Rows {
		if s.Cell(i, resultCol) != "" {
			summary.Skipped++
			continue
		}
		digits := normalize.Digits(s.Cell(i, idCol))
		if digits == "" {
			summary.Skipped++
			continue
		}
		id := normalize.Pad14(digits)

		if _, seen := current.rows[id]; !seen {
			current.ids = append(current.ids, id)
		}
		current.rows[id] = append(current.rows[id], i)

		if len(current.ids) >= e.opts.BatchSize {
			batches = append(batches, current)
			current = batch{rows: make(map[string][]int)}
		}
	}
	if len(current.ids) > 0 {
		batches = append(batches, current)
	}
	return batches
}

// queryBatch runs one batch through the API with the configured retry
// cadence. Remote quota errors are opaque, so every failure is retried.
func (e *Engine) queryBatch(ctx context.Context, batchIdx int, ids []string) (map[string]struct{}, error) {
	cfg := resilience.FixedRetryConfig(e.opts.MaxAttempts, e.opts.RetryDelay)
	cfg.ShouldRetry = func(error) bool { return true }
	cfg.OnRetry = resilience.RetryLogger("eligibility", "query_batch")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (map[string]struct{}, error) {
		if e.opts.Mode == model.ModeDual {
			return e.queryDual(ctx, ids)
		}
		return e.queryWith(ctx, e.credentialsFor(batchIdx), ids)
	})
}

func (e *Engine) credentialsFor(batchIdx int) eligibility.Credentials {
	switch e.opts.Mode {
	case model.ModeSecondary:
		return e.opts.Secondary
	case model.ModeAlternate:
		if batchIdx%2 == 1 {
			return e.opts.Secondary
		}
		return e.opts.Primary
	default:
		return e.opts.Primary
	}
}

func (e *Engine) queryWith(ctx context.Context, creds eligibility.Credentials, ids []string) (map[string]struct{}, error) {
	token, err := e.client.Token(ctx, creds)
	if err != nil {
		return nil, err
	}
	return e.client.Query(ctx, token, ids)
}

// queryDual splits the batch across both credential pairs and queries
// them concurrently. Either half failing fails the attempt.
func (e *Engine) queryDual(ctx context.Context, ids []string) (map[string]struct{}, error) {
	half := len(ids) / 2
	parts := [][]string{ids[:half], ids[half:]}
	creds := []eligibility.Credentials{e.opts.Primary, e.opts.Secondary}
	results := make([]map[string]struct{}, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		if len(parts[i]) == 0 {
			continue
		}
		g.Go(func() error {
			matched, err := e.queryWith(gctx, creds[i], parts[i])
			if err != nil {
				return err
			}
			results[i] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	union := make(map[string]struct{})
	for _, m := range results {
		for id := range m {
			union[id] = struct{}{}
		}
	}
	return union, nil
}
