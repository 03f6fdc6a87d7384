package dispatch

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mmdoc/pkg/diagram"
	"github.com/matzehuels/mmdoc/pkg/emit"
	pkgerrors "github.com/matzehuels/mmdoc/pkg/errors"
	"github.com/matzehuels/mmdoc/pkg/render"
)

type stubRenderer struct {
	calls int
	err   error
}

func (s *stubRenderer) Render(_ context.Context, _ *render.BuildContext, _ diagram.Source, format string) (render.Artifact, error) {
	s.calls++
	if s.err != nil {
		return render.Artifact{}, s.err
	}
	return render.Artifact{WebPath: "_images/m." + format, DiskPath: "/nonexistent/m." + format}, nil
}

func (s *stubRenderer) Crop(_ context.Context, _ *render.BuildContext, in render.Artifact) (render.Artifact, error) {
	return in, nil
}

func TestHTMLTarget(t *testing.T) {
	tests := []struct {
		format string
		want   emit.Target
	}{
		{"raw", emit.TargetRaw},
		{"png", emit.TargetRaster},
		{"svg", emit.TargetVector},
	}
	for _, tt := range tests {
		got, err := HTMLTarget(tt.format)
		if err != nil || got != tt.want {
			t.Errorf("HTMLTarget(%q) = %v, %v", tt.format, got, err)
		}
	}
}

func TestNewRejectsFormatBeforeRendering(t *testing.T) {
	r := &stubRenderer{}
	_, err := New(r, nil, "pdf", nil)
	if !pkgerrors.Is(err, pkgerrors.ErrCodeInvalidFormat) {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
	if r.calls != 0 {
		t.Errorf("renderer called %d times", r.calls)
	}
}

func TestVisitSelectsHTMLTarget(t *testing.T) {
	r := &stubRenderer{}
	d, err := New(r, nil, "svg", log.New(&bytes.Buffer{}))
	if err != nil {
		t.Fatal(err)
	}
	inst, _ := diagram.NewInstance("graph TD", diagram.Options{}, nil)

	var buf bytes.Buffer
	if !d.Visit(context.Background(), &buf, emit.TargetRaw, inst) {
		t.Fatal("Visit should succeed")
	}
	if !strings.Contains(buf.String(), `<object data="_images/m.svg"`) {
		t.Errorf("HTML visit should use the svg emitter, got %q", buf.String())
	}

	buf.Reset()
	d.Visit(context.Background(), &buf, emit.TargetText, inst)
	if buf.String() != "[graph]" {
		t.Errorf("text visit = %q", buf.String())
	}
}

func TestVisitContainsFailures(t *testing.T) {
	var logs bytes.Buffer
	r := &stubRenderer{err: pkgerrors.New(pkgerrors.ErrCodeRenderFailed, "mermaid exited with error")}
	d, err := New(r, nil, "png", log.New(&logs))
	if err != nil {
		t.Fatal(err)
	}
	inst, _ := diagram.NewInstance("graph TD", diagram.Options{}, nil)
	inst.Location = "guide.md:12"

	var buf bytes.Buffer
	if d.Visit(context.Background(), &buf, emit.TargetRaster, inst) {
		t.Error("Visit should report failure")
	}
	if buf.Len() != 0 {
		t.Errorf("failed visit wrote %q", buf.String())
	}
	if !strings.Contains(logs.String(), "guide.md:12") || !strings.Contains(logs.String(), "RENDER_FAILED") {
		t.Errorf("warning should carry location and code: %s", logs.String())
	}

	var reported []error
	pd := d.WithReporter(func(_ *diagram.Instance, err error) { reported = append(reported, err) })
	pd.Visit(context.Background(), &buf, emit.TargetRaster, inst)
	if len(reported) != 1 {
		t.Errorf("reporter called %d times, want 1", len(reported))
	}
}

func TestRawEndToEnd(t *testing.T) {
	d, err := New(&stubRenderer{}, nil, "raw", nil)
	if err != nil {
		t.Fatal(err)
	}

	plain, _ := diagram.NewInstance("sequenceDiagram\nparticipant Alice", diagram.Options{}, nil)
	var buf bytes.Buffer
	d.Visit(context.Background(), &buf, emit.TargetRaw, plain)
	if buf.String() != "<pre class=\"mermaid\">sequenceDiagram\nparticipant Alice</pre>" {
		t.Errorf("raw output = %q", buf.String())
	}

	zoomed, _ := diagram.NewInstance("sequenceDiagram\nparticipant Alice", diagram.Options{Zoom: true}, nil)
	buf.Reset()
	d.Visit(context.Background(), &buf, emit.TargetRaw, zoomed)
	if !strings.Contains(buf.String(), `data-zoom-id="`+zoomed.ZoomID+`"`) {
		t.Errorf("zoomed output = %q", buf.String())
	}
}
