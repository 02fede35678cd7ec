package manifest

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/loadmap/api/internal/database"
)

// Records lays the matrix out as printable rows: a header, one line per
// (order, client), then the TOTAL_BOXES and TOTAL_WEIGHT_KG summary lines.
func (m *LoadMatrix) Records() [][]string {
	width := len(m.Columns) + 3
	out := make([][]string, 0, len(m.Rows)+3)

	header := make([]string, 0, width)
	header = append(header, "ORDER", "CLIENT")
	header = append(header, m.Columns...)
	header = append(header, TotalBoxes)
	out = append(out, header)

	for _, r := range m.Rows {
		line := make([]string, 0, width)
		line = append(line, strconv.FormatInt(r.OrderID, 10), r.Client)
		for _, b := range r.Boxes {
			line = append(line, strconv.FormatInt(b, 10))
		}
		line = append(line, strconv.FormatInt(r.TotalBoxes, 10))
		out = append(out, line)
	}

	boxes := make([]string, 0, width)
	boxes = append(boxes, "", TotalBoxes)
	for _, b := range m.BoxTotals {
		boxes = append(boxes, strconv.FormatInt(b, 10))
	}
	boxes = append(boxes, strconv.FormatInt(m.GrandTotalBoxes, 10))
	out = append(out, boxes)

	weights := make([]string, 0, width)
	weights = append(weights, "", TotalWeightKg)
	for _, w := range m.WeightTotals {
		weights = append(weights, w.StringFixed(database.WeightPlaces))
	}
	weights = append(weights, m.GrandTotalWeight.StringFixed(database.WeightPlaces))
	out = append(out, weights)

	return out
}

// WriteCSV renders the print-friendly manifest.
func WriteCSV(w io.Writer, m *LoadMatrix) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(m.Records()); err != nil {
		return err
	}
	return cw.Error()
}
