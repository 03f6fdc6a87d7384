// Package dispatch routes diagram instances to the emitter of the active
// output target and contains every per-diagram failure.
//
// A [Dispatcher] never fails a page: emitter errors are reported (logged as
// warnings by default) together with the diagram location, and the node is
// skipped.
package dispatch

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/emit"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/render"
)

// ReportFunc receives errors for skipped diagrams.
type ReportFunc func(inst *diagram.Instance, err error)

// Dispatcher selects emitters and contains their failures.
// It is safe for concurrent use.
type Dispatcher struct {
	env    emit.Env
	html   emit.Target
	logger *log.Logger
	report ReportFunc
}

// HTMLTarget maps the configured HTML output format to its target.
// Anything outside raw, png and svg is a configuration error.
func HTMLTarget(outputFormat string) (emit.Target, error) {
	switch outputFormat {
	case "raw":
		return emit.TargetRaw, nil
	case "png":
		return emit.TargetRaster, nil
	case "svg":
		return emit.TargetVector, nil
	}
	return 0, pkgerrors.New(pkgerrors.ErrCodeInvalidFormat,
		"output format must be one of 'raw', 'png', 'svg', but is %q", outputFormat)
}

// New creates a dispatcher. The output format is checked here, before any
// diagram is rendered.
func New(r emit.Renderer, bc *render.BuildContext, outputFormat string, logger *log.Logger) (*Dispatcher, error) {
	html, err := HTMLTarget(outputFormat)
	if err != nil {
		return nil, err
	}
	if bc == nil {
		bc = render.NewBuildContext()
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &Dispatcher{
		env:    emit.Env{Renderer: r, Build: bc},
		html:   html,
		logger: logger,
	}
	d.report = d.logReport
	return d, nil
}

// WithReporter returns a copy of d that sends errors to fn instead of the log.
func (d *Dispatcher) WithReporter(fn ReportFunc) *Dispatcher {
	c := *d
	if fn != nil {
		c.report = fn
	}
	return &c
}

// HTML returns the target used for HTML output.
func (d *Dispatcher) HTML() emit.Target {
	return d.html
}

// Build returns the build context shared by every render.
func (d *Dispatcher) Build() *render.BuildContext {
	return d.env.Build
}

// Visit emits inst for target into w. Any HTML target is replaced by the
// configured HTML target. It reports whether output was written; failures are
// reported and the node is skipped.
func (d *Dispatcher) Visit(ctx context.Context, w io.Writer, target emit.Target, inst *diagram.Instance) bool {
	if target.IsHTML() {
		target = d.html
	}
	e, err := emit.For(target)
	if err != nil {
		d.report(inst, err)
		return false
	}
	if err := e.Emit(ctx, d.env, w, inst); err != nil {
		d.report(inst, err)
		return false
	}
	return true
}

func (d *Dispatcher) logReport(inst *diagram.Instance, err error) {
	d.logger.Warn("skipping diagram",
		"location", inst.Location,
		"code", pkgerrors.GetCode(err),
		"err", err)
}
