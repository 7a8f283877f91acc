// Package dashboard renders a live termui view of a running benchmark.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/wsbench/internal/metrics"
)

const historySize = 100

// RunConfig holds benchmark parameters for display.
type RunConfig struct {
	Address     string  // WebSocket URI
	Connections int     // Concurrent connections
	Messages    int     // Messages per connection
	PayloadSize string  // Human-readable payload size
	Rate        int     // Messages per second per connection (0 = unlimited)
	SampleRate  float64 // Response sample probability
	FailFast    bool    // Abort on handshake failure
	ConfigFile  string  // Path to config file if used
}

// Dashboard renders a live terminal UI for benchmark counters.
type Dashboard struct {
	counters     *metrics.Counters
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	rateSparkle  *widgets.SparklineGroup
	progress     *widgets.Gauge
	summaryPara  *widgets.Paragraph
	countersPara *widgets.Paragraph
	inboundPara  *widgets.Paragraph

	rateHistory []float64
	last        metrics.Snapshot
	lastTick    time.Time
	startTime   time.Time
	cfg         RunConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl-C.
func New(counters *metrics.Counters, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	d := &Dashboard{
		counters:     counters,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		rateHistory:  make([]float64, 0, historySize),
		startTime:    now,
		lastTick:     now,
		cfg:          cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "msg/s"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.rateSparkle = widgets.NewSparklineGroup(sparkline)
	d.rateSparkle.Title = "Send Rate"
	d.rateSparkle.BorderStyle.Fg = ui.ColorCyan

	d.progress = widgets.NewGauge()
	d.progress.Title = "Messages Attempted"
	d.progress.Percent = 0
	d.progress.BarColor = ui.ColorBlue
	d.progress.BorderStyle.Fg = ui.ColorCyan
	d.progress.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Benchmark"
	d.summaryPara.Text = "Connecting..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.countersPara = widgets.NewParagraph()
	d.countersPara.Title = "Messages"
	d.countersPara.Text = "Waiting for data..."
	d.countersPara.BorderStyle.Fg = ui.ColorCyan

	d.inboundPara = widgets.NewParagraph()
	d.inboundPara.Title = "Responses"
	d.inboundPara.Text = "Sampling disabled"
	d.inboundPara.TextStyle = ui.NewStyle(ui.ColorGreen)
	d.inboundPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.18,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.progress),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.6, d.rateSparkle),
			ui.NewCol(0.4, d.countersPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.inboundPara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has unwound.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the counters.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	snap := d.counters.Snapshot()
	rate := instantRate(d.last, snap, now.Sub(d.lastTick))
	d.last, d.lastTick = snap, now

	d.rateHistory = appendBounded(d.rateHistory, rate, historySize)
	d.rateSparkle.Sparklines[0].Data = d.rateHistory
	d.rateSparkle.Title = fmt.Sprintf("Send Rate | Current: %.1f msg/s", rate)

	total := int64(d.cfg.Connections) * int64(d.cfg.Messages)
	d.progress.Percent = percent(snap.Success+snap.Failed, total)
	d.progress.Label = fmt.Sprintf("%d / %d", snap.Success+snap.Failed, total)

	elapsed := now.Sub(d.startTime)
	d.summaryPara.Text = fmt.Sprintf(
		"Address: %s\n%s\nElapsed: %s | Connected: %d/%d",
		d.cfg.Address,
		formatRunParams(d.cfg),
		elapsed.Round(time.Second),
		snap.Established,
		d.cfg.Connections,
	)

	d.countersPara.Text = formatCounters(snap, elapsed)

	if d.cfg.SampleRate > 0 {
		d.inboundPara.Text = fmt.Sprintf("Received: %d\nSampled:  %d (rate %.2f)", snap.Received, snap.Sampled, d.cfg.SampleRate)
	}
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// instantRate is the success rate between two snapshots.
func instantRate(prev, cur metrics.Snapshot, dt time.Duration) float64 {
	secs := dt.Seconds()
	if secs <= 0 || cur.Success < prev.Success {
		return 0
	}
	return float64(cur.Success-prev.Success) / secs
}

func appendBounded(history []float64, v float64, limit int) []float64 {
	history = append(history, v)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(done * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}

func formatCounters(s metrics.Snapshot, elapsed time.Duration) string {
	attempted := s.Success + s.Failed
	successRate := 0.0
	if attempted > 0 {
		successRate = float64(s.Success) / float64(attempted) * 100
	}
	avg := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		avg = float64(s.Success) / secs
	}
	return fmt.Sprintf(
		"Ok:           %d\nErr:          %d\nSuccess Rate: %.1f%%\nAvg Rate:     %.1f msg/s",
		s.Success,
		s.Failed,
		successRate,
		avg,
	)
}

// formatRunParams formats the benchmark parameters for display.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Connections > 0 {
		parts = append(parts, fmt.Sprintf("Connections: %d", cfg.Connections))
	}
	if cfg.Messages > 0 {
		parts = append(parts, fmt.Sprintf("Messages: %d", cfg.Messages))
	}
	if cfg.PayloadSize != "" {
		parts = append(parts, fmt.Sprintf("Payload: %s", cfg.PayloadSize))
	}
	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s per conn", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if !cfg.FailFast {
		parts = append(parts, "Fail-fast: off")
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
