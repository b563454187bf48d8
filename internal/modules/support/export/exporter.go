package export

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/yungbote/support-assistant/internal/modules/support/analytics"
	"github.com/yungbote/support-assistant/internal/observability"
	"github.com/yungbote/support-assistant/internal/platform/apierr"
	"github.com/yungbote/support-assistant/internal/platform/logger"
)

var ErrUnknownSink = fmt.Errorf("unknown export sink: %w", apierr.ErrInvalidArgument)

type Result struct {
	Sink     string `json:"sink"`
	Location string `json:"location"`
	Bytes    int    `json:"bytes"`
	Messages int    `json:"messages"`
	Tickets  int    `json:"tickets"`
}

type Exporter struct {
	log      *logger.Logger
	src      Source
	sinks    map[string]Sink
	def      string
	platform string
	metrics  *observability.Metrics
	now      func() time.Time
}

// New registers sinks by name. The first sink is the default for Export calls that name none.
func New(log *logger.Logger, src Source, metrics *observability.Metrics, platform string, sinks ...Sink) *Exporter {
	if log == nil {
		log = logger.Nop()
	}
	e := &Exporter{
		log:      log.With("service", "Exporter"),
		src:      src,
		sinks:    map[string]Sink{},
		platform: platform,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if e.def == "" {
			e.def = s.Name()
		}
		e.sinks[s.Name()] = s
	}
	return e
}

func (e *Exporter) Sinks() []string {
	out := make([]string, 0, len(e.sinks))
	for name := range e.sinks {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Document builds and encodes the export without writing it anywhere.
func (e *Exporter) Document(ctx context.Context, f analytics.Filter) (*Document, []byte, error) {
	doc, err := Build(ctx, e.src, f, e.platform)
	if err != nil {
		return nil, nil, err
	}
	body, err := doc.Encode()
	if err != nil {
		return nil, nil, err
	}
	return doc, body, nil
}

func (e *Exporter) Export(ctx context.Context, sinkName string, f analytics.Filter) (*Result, error) {
	if sinkName == "" {
		sinkName = e.def
	}
	sink, ok := e.sinks[sinkName]
	if !ok {
		return nil, ErrUnknownSink
	}
	doc, body, err := e.Document(ctx, f)
	if err != nil {
		e.metrics.IncExport(sinkName, "error")
		return nil, err
	}
	name := FileName(e.now())
	loc, err := sink.Write(ctx, name, body)
	if err != nil {
		e.metrics.IncExport(sinkName, "error")
		e.log.Warn("export write failed", "sink", sinkName, "name", name, "error", err)
		return nil, fmt.Errorf("write export to %s: %w", sinkName, err)
	}
	e.metrics.IncExport(sinkName, "ok")
	e.log.Info("export written", "sink", sinkName, "location", loc, "messages", len(doc.Messages), "bytes", len(body))
	return &Result{
		Sink:     sinkName,
		Location: loc,
		Bytes:    len(body),
		Messages: len(doc.Messages),
		Tickets:  len(doc.Tickets),
	}, nil
}
