// Package check evaluates data quality assertions: a scalar query's
// result must fall within an inclusive threshold pair, where each
// bound is either a literal or the result of a secondary scalar query.
package check

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/hazz-dev/dataprobe/internal/config"
	"github.com/hazz-dev/dataprobe/internal/connection"
	"github.com/hazz-dev/dataprobe/internal/scalar"
)

// Bounds is a resolved threshold pair.
type Bounds struct {
	Min float64
	Max float64
}

// Evaluate reports whether measured falls within b. Both ends are
// inclusive; exact boundary values pass.
func Evaluate(measured float64, b Bounds) bool {
	return b.Min <= measured && measured <= b.Max
}

// HandleResolver resolves connection ids to query-capable handles.
type HandleResolver interface {
	Resolve(connID string) (connection.Handle, error)
}

// Dispatcher routes a finished result to the log and any configured sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, res Result, sqlText string) error
}

// threshold is one bound: a literal value or a scalar query resolved
// at evaluation time.
type threshold struct {
	value   float64
	sql     string
	dynamic bool
}

// Check is a fully configured data quality check. Named parameters are
// substituted into the identifier, description, and SQL once at
// construction; all fields are immutable afterwards.
type Check struct {
	id              string
	description     string
	sql             string
	connID          string
	thresholdConnID string
	min             threshold
	max             threshold

	resolver   HandleResolver
	exec       *scalar.Executor
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New builds a Check from cfg. It renders the id, description, and SQL
// templates against cfg.Params and validates literal threshold
// ordering; violations return a *ConfigError. Pass nil logger to use
// the default logger.
func New(cfg config.Check, resolver HandleResolver, dispatcher Dispatcher, logger *slog.Logger) (*Check, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Check{
		connID:          cfg.Connection,
		thresholdConnID: cfg.ThresholdConnection,
		resolver:        resolver,
		exec:            scalar.NewExecutor(logger),
		dispatcher:      dispatcher,
		logger:          logger,
	}
	if c.thresholdConnID == "" {
		c.thresholdConnID = cfg.Connection
	}

	var err error
	if c.id, err = render("id", cfg.ID, cfg.Params); err != nil {
		return nil, &ConfigError{CheckID: cfg.ID, Reason: fmt.Sprintf("rendering id: %v", err)}
	}
	if c.description, err = render("description", cfg.Description, cfg.Params); err != nil {
		return nil, &ConfigError{CheckID: c.id, Reason: fmt.Sprintf("rendering description: %v", err)}
	}
	if c.sql, err = render("sql", cfg.SQL, cfg.Params); err != nil {
		return nil, &ConfigError{CheckID: c.id, Reason: fmt.Sprintf("rendering sql: %v", err)}
	}

	if c.min, err = newThreshold("min", cfg.MinThreshold, cfg.MinThresholdSQL, cfg.Params); err != nil {
		return nil, &ConfigError{CheckID: c.id, Reason: err.Error()}
	}
	if c.max, err = newThreshold("max", cfg.MaxThreshold, cfg.MaxThresholdSQL, cfg.Params); err != nil {
		return nil, &ConfigError{CheckID: c.id, Reason: err.Error()}
	}

	if !c.min.dynamic && !c.max.dynamic && c.min.value > c.max.value {
		return nil, &ConfigError{
			CheckID: c.id,
			Reason:  fmt.Sprintf("min threshold %v exceeds max threshold %v", c.min.value, c.max.value),
		}
	}

	return c, nil
}

// ID returns the check identifier after parameter substitution.
func (c *Check) ID() string { return c.id }

// SQL returns the check's query text after parameter substitution.
func (c *Check) SQL() string { return c.sql }

// Run executes the check once: resolve the primary connection, fetch
// the measured value, resolve both thresholds fresh, evaluate, build
// the result record, and dispatch it. Re-invocation re-executes every
// query; nothing is memoized. If evaluation completed but dispatch
// reported the failure, the Result is returned alongside the error.
func (c *Check) Run(ctx context.Context) (Result, error) {
	primary, err := c.resolver.Resolve(c.connID)
	if err != nil {
		return Result{}, err
	}
	defer primary.Close()

	measured, err := c.exec.Fetch(ctx, primary, c.sql)
	if err != nil {
		return Result{}, fmt.Errorf("check %q: %w", c.id, err)
	}

	bounds, err := c.resolveBounds(ctx, primary)
	if err != nil {
		return Result{}, fmt.Errorf("check %q: %w", c.id, err)
	}

	res := Result{
		CheckID:         c.id,
		Description:     c.description,
		ExecutedAt:      time.Now().UTC(),
		Value:           measured,
		MinThreshold:    bounds.Min,
		MaxThreshold:    bounds.Max,
		WithinThreshold: Evaluate(measured, bounds),
	}

	if err := c.dispatcher.Dispatch(ctx, res, c.sql); err != nil {
		return res, err
	}
	return res, nil
}

// resolveBounds produces the threshold pair for this run. Dynamic
// bounds run through the threshold connection (the primary handle when
// the ids match); min and max queries are independent and execute
// concurrently, with no ordering between them.
func (c *Check) resolveBounds(ctx context.Context, primary connection.Handle) (Bounds, error) {
	var b Bounds
	if !c.min.dynamic {
		b.Min = c.min.value
	}
	if !c.max.dynamic {
		b.Max = c.max.value
	}
	if !c.min.dynamic && !c.max.dynamic {
		return b, nil
	}

	handle := primary
	if c.thresholdConnID != c.connID {
		h, err := c.resolver.Resolve(c.thresholdConnID)
		if err != nil {
			return Bounds{}, err
		}
		defer h.Close()
		handle = h
	}

	var wg sync.WaitGroup
	var minErr, maxErr error
	if c.min.dynamic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.exec.Fetch(ctx, handle, c.min.sql)
			if err != nil {
				minErr = &ThresholdResolutionError{Bound: "min", Err: err}
				return
			}
			b.Min = v
		}()
	}
	if c.max.dynamic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.exec.Fetch(ctx, handle, c.max.sql)
			if err != nil {
				maxErr = &ThresholdResolutionError{Bound: "max", Err: err}
				return
			}
			b.Max = v
		}()
	}
	wg.Wait()

	if minErr != nil {
		return Bounds{}, minErr
	}
	if maxErr != nil {
		return Bounds{}, maxErr
	}
	return b, nil
}

func newThreshold(bound string, literal *float64, sqlText string, params map[string]string) (threshold, error) {
	if literal != nil {
		return threshold{value: *literal}, nil
	}
	rendered, err := render(bound+"_threshold_sql", sqlText, params)
	if err != nil {
		return threshold{}, fmt.Errorf("rendering %s threshold sql: %v", bound, err)
	}
	return threshold{sql: rendered, dynamic: true}, nil
}

// render substitutes named parameters into a template string. Strings
// without template actions pass through untouched.
func render(name, text string, params map[string]string) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", err
	}
	return buf.String(), nil
}
