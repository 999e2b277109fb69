package monitor

import (
	"fmt"
	"image/color"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/lumen-access/waypoint/internal/monitoring"
	"github.com/lumen-access/waypoint/internal/session"
)

// handleTracePlot renders the guidance trace as a PNG line plot of the
// horizontal coordinate against frame index. The x axis is the one the
// alignment policy resolves first, so lag between raw and predicted
// shows up here.
func (ws *WebServer) handleTracePlot(w http.ResponseWriter, r *http.Request) {
	if ws.search == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no search session configured")
		return
	}
	trace := ws.search.Trace()
	if len(trace) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no guidance trace recorded yet")
		return
	}

	p := plot.New()
	p.Title.Text = "Guidance Trace (horizontal axis)"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "x position"
	p.Y.Min = 0
	p.Y.Max = 1

	addTraceLine(p, "raw", trace, func(tp session.TracePoint) (float64, bool) {
		return tp.Raw.X, true
	}, color.RGBA{R: 214, G: 69, B: 65, A: 255})
	addTraceLine(p, "smoothed", trace, func(tp session.TracePoint) (float64, bool) {
		return tp.Smooth.X, true
	}, color.RGBA{R: 65, G: 131, B: 215, A: 255})
	addTraceLine(p, "predicted", trace, func(tp session.TracePoint) (float64, bool) {
		if tp.Predicted.IsUnknown() {
			return 0, false
		}
		return tp.Predicted.X, true
	}, color.RGBA{R: 38, G: 166, B: 91, A: 255})

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render trace plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		monitoring.Logf("trace plot write failed: %v", err)
	}
}

func addTraceLine(p *plot.Plot, name string, trace []session.TracePoint, value func(session.TracePoint) (float64, bool), c color.Color) {
	pts := make(plotter.XYs, 0, len(trace))
	for _, tp := range trace {
		v, ok := value(tp)
		if !ok {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(tp.Frame), Y: v})
	}
	if len(pts) == 0 {
		return
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return
	}
	line.Color = c
	p.Add(line)
	p.Legend.Add(name, line)
}
