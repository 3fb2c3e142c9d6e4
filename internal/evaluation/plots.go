package evaluation

import (
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// confusionGrid adapts a confusion matrix to the heat map grid interface.
type confusionGrid struct {
	matrix [][]int
}

func (g confusionGrid) Dims() (c, r int) {
	if len(g.matrix) == 0 {
		return 0, 0
	}
	return len(g.matrix[0]), len(g.matrix)
}

func (g confusionGrid) Z(c, r int) float64 { return float64(g.matrix[r][c]) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

func (e *Evaluator) plotCategorization(result *CategorizationResult, confidences []float64) error {
	if err := os.MkdirAll(e.plotsDir, 0750); err != nil {
		return err
	}

	heat := plot.New()
	heat.Title.Text = "Transaction Categorization - Confusion Matrix"
	heat.X.Label.Text = "Predicted Category"
	heat.Y.Label.Text = "Actual Category"
	heat.Add(plotter.NewHeatMap(confusionGrid{matrix: result.ConfusionMatrix}, palette.Heat(12, 1)))
	heat.X.Tick.Marker = labelTicks(result.Labels)
	heat.Y.Tick.Marker = labelTicks(result.Labels)
	path := filepath.Join(e.plotsDir, "categorization_confusion_matrix.png")
	if err := heat.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return err
	}

	hist := plot.New()
	hist.Title.Text = "Distribution of Prediction Confidence"
	hist.X.Label.Text = "Prediction Confidence"
	hist.Y.Label.Text = "Frequency"
	bars, err := plotter.NewHist(plotter.Values(confidences), 20)
	if err != nil {
		return err
	}
	bars.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	hist.Add(bars)
	path = filepath.Join(e.plotsDir, "categorization_confidence_dist.png")
	if err := hist.Save(7*vg.Inch, 4*vg.Inch, path); err != nil {
		return err
	}

	e.log.Info("Categorization evaluation plots saved")
	return nil
}

func (e *Evaluator) plotPrediction(result *PredictionResult) error {
	if err := os.MkdirAll(e.plotsDir, 0750); err != nil {
		return err
	}

	scatter := plot.New()
	scatter.Title.Text = "Spending Prediction: Actual vs Predicted"
	scatter.X.Label.Text = "Actual Spending"
	scatter.Y.Label.Text = "Predicted Spending"

	points := make(plotter.XYs, len(result.Actual))
	minVal, maxVal := result.Actual[0], result.Actual[0]
	for i := range result.Actual {
		points[i].X = result.Actual[i]
		points[i].Y = result.Predicted[i]
		for _, v := range []float64{result.Actual[i], result.Predicted[i]} {
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
	}
	dots, err := plotter.NewScatter(points)
	if err != nil {
		return err
	}
	dots.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.Add(dots)

	ideal, err := plotter.NewLine(plotter.XYs{{X: minVal, Y: minVal}, {X: maxVal, Y: maxVal}})
	if err != nil {
		return err
	}
	ideal.LineStyle.Color = color.RGBA{R: 200, A: 255}
	ideal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	scatter.Add(ideal)
	scatter.Legend.Add("Perfect Prediction", ideal)

	path := filepath.Join(e.plotsDir, "prediction_actual_vs_predicted.png")
	if err := scatter.Save(7*vg.Inch, 6*vg.Inch, path); err != nil {
		return err
	}

	if len(result.Dates) > 0 {
		series := plot.New()
		series.Title.Text = "Spending Prediction Time Series"
		series.X.Label.Text = "Date"
		series.Y.Label.Text = "Spending Amount"
		series.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

		actualLine, err := plotter.NewLine(timeSeries(result.Dates, result.Actual))
		if err != nil {
			return err
		}
		predictedLine, err := plotter.NewLine(timeSeries(result.Dates, result.Predicted))
		if err != nil {
			return err
		}
		predictedLine.LineStyle.Color = color.RGBA{R: 220, G: 120, A: 255}
		series.Add(actualLine, predictedLine)
		series.Legend.Add("Actual", actualLine)
		series.Legend.Add("Predicted", predictedLine)

		path = filepath.Join(e.plotsDir, "prediction_time_series.png")
		if err := series.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
			return err
		}
	}

	e.log.Info("Prediction evaluation plots saved")
	return nil
}

func timeSeries(dates []time.Time, values []float64) plotter.XYs {
	out := make(plotter.XYs, len(values))
	for i := range values {
		out[i].X = float64(dates[i].Unix())
		out[i].Y = values[i]
	}
	return out
}

// labelTicks places one named tick per class index.
func labelTicks(labels []string) plot.ConstantTicks {
	ticks := make([]plot.Tick, len(labels))
	for i, label := range labels {
		ticks[i] = plot.Tick{Value: float64(i), Label: label}
	}
	return plot.ConstantTicks(ticks)
}
