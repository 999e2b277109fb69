package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// echartsAssetsPrefix hosts the chart runtime so debug pages work
// without bundling assets.
const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleGridChart renders the last reading pass's occupancy grid as a
// scatter heatmap (HTML) with the detected cluster corners overlaid.
// Debugging-only endpoint, no auth.
func (ws *WebServer) handleGridChart(w http.ResponseWriter, r *http.Request) {
	if ws.reader == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no reading session configured")
		return
	}
	cells := ws.reader.GridSnapshot()
	if cells == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no recognition pass has run yet")
		return
	}

	rows := len(cells)
	cols := len(cells[0])
	occupied := make([]opts.ScatterData, 0, rows*cols/4)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if cells[row][col] {
				// Flip rows so the page shows the frame upright.
				occupied = append(occupied, opts.ScatterData{Value: []interface{}{col, rows - 1 - row, 1}})
			}
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Text Occupancy Grid", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Text Occupancy Grid", Subtitle: fmt.Sprintf("occupied=%d of %dx%d", len(occupied), rows, cols)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: cols, Name: "col"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: rows, Name: "row"}),
	)
	scatter.AddSeries("occupied", occupied, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	if quad, ok := ws.reader.Quad(); ok {
		corners := make([]opts.ScatterData, 0, 4)
		for _, p := range []struct{ X, Y float64 }{
			{quad.TopLeft.X, quad.TopLeft.Y},
			{quad.TopRight.X, quad.TopRight.Y},
			{quad.BottomRight.X, quad.BottomRight.Y},
			{quad.BottomLeft.X, quad.BottomLeft.Y},
		} {
			// Quad corners are normalized bottom-left; scale to the
			// grid's cell coordinates used by the occupied series.
			corners = append(corners, opts.ScatterData{Value: []interface{}{p.X * float64(cols), p.Y * float64(rows), 2}})
		}
		scatter.AddSeries("cluster", corners, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render grid chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTraceChart renders the guidance trace (raw vs smoothed vs
// predicted positions) as scatter series in frame order.
func (ws *WebServer) handleTraceChart(w http.ResponseWriter, r *http.Request) {
	if ws.search == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no search session configured")
		return
	}
	trace := ws.search.Trace()
	if len(trace) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no guidance trace recorded yet")
		return
	}

	raw := make([]opts.ScatterData, 0, len(trace))
	smooth := make([]opts.ScatterData, 0, len(trace))
	predicted := make([]opts.ScatterData, 0, len(trace))
	for _, tp := range trace {
		raw = append(raw, opts.ScatterData{Value: []interface{}{tp.Raw.X, tp.Raw.Y, tp.Frame}})
		smooth = append(smooth, opts.ScatterData{Value: []interface{}{tp.Smooth.X, tp.Smooth.Y, tp.Frame}})
		if !tp.Predicted.IsUnknown() {
			predicted = append(predicted, opts.ScatterData{Value: []interface{}{tp.Predicted.X, tp.Predicted.Y, tp.Frame}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Guidance Trace", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Guidance Trace", Subtitle: fmt.Sprintf("session=%s frames=%d", ws.search.ID(), len(trace))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "y"}),
	)
	scatter.AddSeries("raw", raw, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("smoothed", smooth, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("predicted", predicted, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render trace chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
