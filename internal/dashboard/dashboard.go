package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/output"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxErrorRows    = 10
)

// RunConfig holds benchmark configuration parameters for display.
type RunConfig struct {
	Workload    string        // select or insert
	Target      string        // host:port/database
	Table       string        // table under test
	TxMode      string        // auto-commit, optimistic, pessimistic
	Concurrency int           // Number of concurrent workers
	Duration    time.Duration // Bench duration (0 = unlimited)
	Iterations  int64         // Measured iterations to execute (0 = unlimited)
	Warmup      int64         // Warmup iterations
	Rate        int           // Iterations per second (0 = unlimited)
	Timeout     time.Duration // Per-iteration timeout
	ConfigFile  string        // Path to config file if used
}

// Dashboard renders a live terminal UI for benchmark metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid            *ui.Grid
	latencySparkle  *widgets.SparklineGroup
	percentileTable *widgets.Table
	throughputGauge *widgets.Gauge
	errorList       *widgets.List
	summaryPara     *widgets.Paragraph
	metricsPara     *widgets.Paragraph
	latencyHistory  []float64
	peakThroughput  float64
	runConfig       RunConfig
}

// New creates a new Dashboard. shutdownFunc is invoked when the user presses
// q or Ctrl-C.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historySize),
		runConfig:      cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "P99 latency (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Real-time Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.percentileTable = widgets.NewTable()
	d.percentileTable.Title = "Latency Percentiles"
	d.percentileTable.Rows = [][]string{{"Quantile", "Latency"}}
	d.percentileTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.percentileTable.RowSeparator = false
	d.percentileTable.BorderStyle.Fg = ui.ColorCyan

	d.throughputGauge = widgets.NewGauge()
	d.throughputGauge.Title = "Iterations Per Second"
	d.throughputGauge.Percent = 0
	d.throughputGauge.BarColor = ui.ColorBlue
	d.throughputGauge.BorderStyle.Fg = ui.ColorCyan
	d.throughputGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Benchmark"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.24,
			ui.NewCol(0.5, d.throughputGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.34,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.percentileTable),
		),
		ui.NewRow(0.26,
			ui.NewCol(1.0, d.errorList),
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

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
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
				// Keep drawing while the run drains; Stop cancels the loop.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update(d.collector.Snapshot())
			d.render()
		}
	}
}

// update refreshes all widget data from stats.
func (d *Dashboard) update(stats metrics.Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stats.Total > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.P99LatencyMs)
		if len(d.latencyHistory) > historySize {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Real-time Latency | P99: %.2fms | Min: %.2fms | Max: %.2fms",
			stats.P99LatencyMs,
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	current := stats.IterationsPerSec
	if current > d.peakThroughput {
		d.peakThroughput = current
	}
	scale := d.peakThroughput
	if d.runConfig.Rate > 0 {
		scale = float64(d.runConfig.Rate)
	}
	d.throughputGauge.Percent = gaugePercent(current, scale)
	d.throughputGauge.Label = fmt.Sprintf("%.1f it/s", current)

	successRate := 0.0
	if stats.Total > 0 {
		successRate = (float64(stats.Successes) / float64(stats.Total)) * 100
	}

	d.summaryPara.Text = fmt.Sprintf(
		"%s on %s (table %s, %s)\n%s\nElapsed: %s | Iterations: %d | Success Rate: %.1f%%",
		strings.ToUpper(d.runConfig.Workload),
		d.runConfig.Target,
		d.runConfig.Table,
		d.runConfig.TxMode,
		d.formatRunParams(),
		stats.Duration.Round(time.Second),
		stats.Total,
		successRate,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Iterations:        %d\nSuccessful:        %d\nFailed:            %d\nWarmup:            %d\nRows/sec:          %.1f\nBandwidth:         %s\nTransferred:       %s",
		stats.Total,
		stats.Successes,
		stats.Failures,
		stats.Warmup,
		stats.ItemsPerSec,
		output.FormatRate(stats.BytesPerSec),
		output.FormatBytes(stats.Bytes),
	)

	d.percentileTable.Rows = formatPercentileRows(stats)
	d.errorList.Rows = formatErrorRows(stats.Errors)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func gaugePercent(value, scale float64) int {
	if scale <= 0 || value <= 0 {
		return 0
	}
	pct := int(value / scale * 100)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func formatPercentileRows(stats metrics.Stats) [][]string {
	rows := make([][]string, 0, len(stats.Percentiles)+4)
	rows = append(rows, []string{"Quantile", "Latency"})
	rows = append(rows, []string{"min", fmt.Sprintf("%.2fms", stats.MinLatencyMs)})
	rows = append(rows, []string{"mean", fmt.Sprintf("%.2fms", stats.MeanLatencyMs)})
	for _, p := range stats.Percentiles {
		rows = append(rows, []string{fmt.Sprintf("P%g", p.Quantile), fmt.Sprintf("%.2fms", p.LatencyMs)})
	}
	rows = append(rows, []string{"max", fmt.Sprintf("%.2fms", stats.MaxLatencyMs)})
	return rows
}

func formatErrorRows(errs map[string]int) []string {
	rows := metrics.FlattenErrors(errs)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(rows) > maxErrorRows {
		rows = rows[:maxErrorRows]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", row.Type, row.Count))
	}
	return formatted
}

// formatRunParams formats the run parameters for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Concurrency > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", d.runConfig.Concurrency))
	}

	if d.runConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.runConfig.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.runConfig.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", d.runConfig.Duration))
	}

	if d.runConfig.Iterations > 0 {
		parts = append(parts, fmt.Sprintf("Iterations: %d", d.runConfig.Iterations))
	}

	if d.runConfig.Warmup > 0 {
		parts = append(parts, fmt.Sprintf("Warmup: %d", d.runConfig.Warmup))
	}

	if d.runConfig.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.runConfig.Timeout))
	}

	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
