package exports

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/fdg312/meal-hub/internal/shoppinglist"
	"github.com/jung-kurt/gofpdf"
)

var csvHeader = []string{"category", "name", "quantity", "unit", "checked", "source"}

// RenderCSV writes one row per item, in list order.
func RenderCSV(list *shoppinglist.ListResponse) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, group := range list.Groups {
		for _, item := range group.Items {
			row := []string{
				group.Label,
				item.Name,
				formatQuantity(item.Quantity),
				item.Unit,
				strconv.FormatBool(item.Checked),
				source(item),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// RenderPDF draws the grouped list as an A4 checklist.
func RenderPDF(list *shoppinglist.ListResponse, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Shopping list")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("%s, %d items", generatedAt.Format("2006-01-02 15:04"), list.Total))
	pdf.Ln(10)

	for _, group := range list.Groups {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, tr(group.Label))
		pdf.Ln(8)

		pdf.SetFont("Helvetica", "", 10)
		for _, item := range group.Items {
			mark := "[ ]"
			if item.Checked {
				mark = "[x]"
			}
			pdf.CellFormat(10, 6, mark, "", 0, "C", false, 0, "")
			pdf.CellFormat(80, 6, tr(item.Name), "B", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, formatQuantity(item.Quantity), "B", 0, "R", false, 0, "")
			pdf.CellFormat(20, 6, tr(item.Unit), "B", 0, "L", false, 0, "")
			pdf.CellFormat(55, 6, tr(source(item)), "B", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return buf.Bytes(), nil
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func source(item shoppinglist.ItemDTO) string {
	if item.DishName != nil && *item.DishName != "" {
		return *item.DishName
	}
	if item.Generated {
		return "meal plan"
	}
	return "manual"
}
