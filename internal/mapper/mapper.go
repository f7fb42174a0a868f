// Package mapper converts between geographic coordinates and H3 cells.
package mapper

import (
	"github.com/mohammed-shakir/airmap/internal/core/model"
)

type Interface interface {
	CellForPoint(p model.Point, res int) (string, error)
	// CellsForBox returns a cell set such that every point inside the box
	// lies in one of the returned cells.
	CellsForBox(box model.BoundingBox, res int) (model.Cells, error)
}
