// Package dashboard drives one sensor dashboard: it turns selections and
// searches into WoTKit requests and publishes the transformed results to a
// Renderer.
//
// Requests run on their own goroutines. Their completions are queued onto the
// goroutine running Controller.Run, so Renderer methods are only ever called
// from that goroutine, one at a time. Each view is published as soon as its own
// data is ready; fields-derived and readings-derived views are not
// synchronized with each other. Responses that belong to a superseded
// selection or search are dropped instead of overwriting newer views.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"wotkit-dashboard/internal/metrics"
	"wotkit-dashboard/internal/modules/sensors/tally"
	"wotkit-dashboard/internal/modules/sensors/types"
	"wotkit-dashboard/internal/modules/sensors/viewdata"
	"wotkit-dashboard/internal/wotkit"
)

const (
	DefaultMapLabel = "Sensor"
	eventQueueSize  = 64
)

var ErrStopped = errors.New("dashboard controller stopped")

type Client interface {
	FetchReadings(ctx context.Context, sensorID string, limit int) ([]types.Reading, error)
	FetchFields(ctx context.Context, sensorID string) ([]types.Field, error)
	SearchSensors(ctx context.Context, query string) ([]types.SensorSummary, error)
}

// Renderer receives prepared view data. Implementations own the visual
// instances; each call replaces what the view showed before.
type Renderer interface {
	RenderSelection(sel types.Selection)
	RenderTable(rows []viewdata.TableRow)
	RenderLine(series []float64)
	RenderPolar(buckets []viewdata.Bucket)
	RenderMap(point viewdata.MapPoint)
	RenderTrendline(points []viewdata.Point)
	RenderSensorList(sensors []types.SensorSummary)
	RenderStatus(status Status)
}

// Status is published after every request start and completion. Err is the
// last failure since the most recent user action; views keep their last good
// data when it is set.
type Status struct {
	Pending int
	Err     error
}

func (s Status) Loading() bool { return s.Pending > 0 }

type Options struct {
	ReadingsLimit int
	// Timeout bounds each fetch independently of the caller's context.
	Timeout  time.Duration
	MapLabel string
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

type Controller struct {
	client   Client
	renderer Renderer
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics

	events chan func()
	done   chan struct{}

	selectionSeq atomic.Uint64
	searchSeq    atomic.Uint64

	// owned by the Run goroutine
	pending int
	lastErr error
}

func New(client Client, renderer Renderer, opts Options) *Controller {
	if opts.ReadingsLimit <= 0 {
		opts.ReadingsLimit = wotkit.DefaultReadingsLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = wotkit.DefaultTimeout
	}
	if opts.MapLabel == "" {
		opts.MapLabel = DefaultMapLabel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		client:   client,
		renderer: renderer,
		opts:     opts,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		events:   make(chan func(), eventQueueSize),
		done:     make(chan struct{}),
	}
}

// Run processes completions until ctx is done. It must be called once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.events:
			fn()
		}
	}
}

// Select makes sensorID the current selection and fires the fields and
// readings fetches for it. In-flight fetches of earlier selections are not
// cancelled; their results are discarded when they arrive.
func (c *Controller) Select(ctx context.Context, sensorID string) (types.Selection, error) {
	sel := types.Selection{
		Seq:        c.selectionSeq.Add(1),
		SensorID:   sensorID,
		SelectedAt: c.opts.Now().UTC(),
	}
	err := c.post(ctx, func() {
		c.renderer.RenderSelection(sel)
		c.begin(2)
	})
	if err != nil {
		release(&c.selectionSeq, sel.Seq)
		return types.Selection{}, err
	}
	c.metrics.SelectionStarted()
	c.logger.Info("sensor selected", "sensor_id", sensorID, "seq", sel.Seq)

	fetchCtx := context.WithoutCancel(ctx)
	go c.fetchFields(fetchCtx, sel)
	go c.fetchReadings(fetchCtx, sel)
	return sel, nil
}

// Search fires a sensor search and publishes the result list when it
// arrives. The query is forwarded as is, empty included.
func (c *Controller) Search(ctx context.Context, query string) (uint64, error) {
	seq := c.searchSeq.Add(1)
	if err := c.post(ctx, func() { c.begin(1) }); err != nil {
		release(&c.searchSeq, seq)
		return 0, err
	}
	c.logger.Info("sensor search", "query", query, "seq", seq)

	go func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
		sensors, err := c.client.SearchSensors(ctx, query)
		c.complete(wotkit.OpSearchSensors, seq, &c.searchSeq, err, func() error {
			c.renderer.RenderSensorList(sensors)
			return nil
		})
	}(context.WithoutCancel(ctx))
	return seq, nil
}

// CurrentSelection returns the sequence number of the latest selection.
func (c *Controller) CurrentSelection() uint64 {
	return c.selectionSeq.Load()
}

func (c *Controller) fetchFields(ctx context.Context, sel types.Selection) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	fields, err := c.client.FetchFields(ctx, sel.SensorID)
	c.complete(wotkit.OpFetchFields, sel.Seq, &c.selectionSeq, err, func() error {
		lookup := viewdata.BuildFieldLookup(fields)
		point, err := viewdata.BuildMapPoint(lookup, c.opts.MapLabel)
		if err != nil {
			return &wotkit.MalformedResponseError{
				Op:     wotkit.OpFetchFields,
				Target: sel.SensorID,
				Reason: "sensor position",
				Err:    err,
			}
		}
		c.renderer.RenderMap(point)
		return nil
	})
}

func (c *Controller) fetchReadings(ctx context.Context, sel types.Selection) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	readings, err := c.client.FetchReadings(ctx, sel.SensorID, c.opts.ReadingsLimit)
	c.complete(wotkit.OpFetchReadings, sel.Seq, &c.selectionSeq, err, func() error {
		c.renderer.RenderLine(viewdata.BuildLineSeries(readings))
		c.renderer.RenderPolar(viewdata.BuildHistogramBuckets(tally.Count(readings)))
		c.renderer.RenderTrendline(viewdata.BuildTrendlinePoints(readings))
		c.renderer.RenderTable(viewdata.BuildTableRows(readings))
		return nil
	})
}

// complete queues the handling of one finished request. apply runs only if
// seq is still the current sequence of its kind and the request succeeded.
func (c *Controller) complete(op string, seq uint64, current *atomic.Uint64, err error, apply func() error) {
	posted := c.post(context.Background(), func() {
		c.pending--
		switch latest := current.Load(); {
		case seq != latest:
			c.metrics.StaleResponse(op)
			c.logger.Debug("discarding stale response", "op", op, "seq", seq, "latest", latest, "error", err)
		case err != nil:
			c.fail(op, err)
		default:
			if err := apply(); err != nil {
				c.fail(op, err)
			}
		}
		c.renderer.RenderStatus(c.status())
	})
	if posted != nil {
		c.logger.Debug("dropping completion", "op", op, "seq", seq, "error", posted)
	}
}

// release gives back seq when its action never started, so the previous
// action stays current. A newer action that already took a number wins.
func release(counter *atomic.Uint64, seq uint64) {
	counter.CompareAndSwap(seq, seq-1)
}

func (c *Controller) begin(requests int) {
	c.pending += requests
	c.lastErr = nil
	c.renderer.RenderStatus(c.status())
}

func (c *Controller) fail(op string, err error) {
	c.lastErr = err
	c.logger.Warn("dashboard request failed, keeping last good view", "op", op, "error", err)
}

func (c *Controller) status() Status {
	return Status{Pending: c.pending, Err: c.lastErr}
}

func (c *Controller) post(ctx context.Context, fn func()) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}
	select {
	case c.events <- fn:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
