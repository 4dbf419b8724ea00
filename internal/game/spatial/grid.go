// Package spatial provides cache-efficient spatial data structures for
// broad-phase collision detection and concurrent hand-off between the
// gateway goroutines and the tick loop.
//
// Structures use preallocated slices with integer ids (not pointers)
// to minimize GC pressure and maximize cache locality.
package spatial

import (
	"math"
)

// Grid maps world-space cells to sets of entity ids for conservative
// broad-phase queries. Cells are stored in row-major order
// (cells[row*cols+col]); a membership index makes Remove and Relocate O(k)
// in the occupancy of a single cell rather than a full rescan.
//
// Cell size should be at least as large as the biggest entity bbox so that
// scanning a covered cell range plus one neighbor ring is always
// conservative.
type Grid struct {
	cellSize    float64
	invCellSize float64 // 1/cellSize for faster division
	cols, rows  int
	cells       [][]uint64     // cells[row*cols+col] = ids in that cell
	where       map[uint64]int // id -> current cell index
	scratch     []uint64       // reusable buffer for query results
}

// NewGrid creates a grid covering the given world bounds.
func NewGrid(worldWidth, worldHeight, cellSize float64) *Grid {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]uint64, cols*rows)
	for i := range cells {
		cells[i] = make([]uint64, 0, 4)
	}

	return &Grid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		where:       make(map[uint64]int, 256),
		scratch:     make([]uint64, 0, 64),
	}
}

// Clear resets all cells without deallocating underlying memory.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	clear(g.where)
}

// cellIndex computes the cell index for a position, clamped to grid bounds.
func (g *Grid) cellIndex(x, y float64) int {
	col := int(x * g.invCellSize)
	row := int(y * g.invCellSize)

	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}

	return row*g.cols + col
}

// Insert adds an id at position (x, y). Inserting an id twice relocates it.
func (g *Grid) Insert(id uint64, x, y float64) {
	idx := g.cellIndex(x, y)
	if prev, ok := g.where[id]; ok {
		if prev == idx {
			return
		}
		g.removeFromCell(id, prev)
	}
	g.cells[idx] = append(g.cells[idx], id)
	g.where[id] = idx
}

// Remove deletes an id from the grid. Unknown ids are ignored.
func (g *Grid) Remove(id uint64) {
	idx, ok := g.where[id]
	if !ok {
		return
	}
	g.removeFromCell(id, idx)
	delete(g.where, id)
}

// Relocate moves an id to a new position. Cheap when the id stays in the
// same cell.
func (g *Grid) Relocate(id uint64, x, y float64) {
	g.Insert(id, x, y)
}

// removeFromCell swaps the id out of the cell slice without reallocating.
func (g *Grid) removeFromCell(id uint64, idx int) {
	cell := g.cells[idx]
	for i, v := range cell {
		if v == id {
			last := len(cell) - 1
			cell[i] = cell[last]
			g.cells[idx] = cell[:last]
			return
		}
	}
}

// QueryRegion returns every id whose cell falls inside the bbox's covered
// cell range expanded by one neighbor ring. For a bbox within a single cell
// this is the query cell plus its 8 neighbors. The result is conservative:
// it may include ids outside the bbox (the caller narrows), never fewer.
//
// IMPORTANT: The returned slice is reused on subsequent calls.
// Copy the results if you need to persist them.
func (g *Grid) QueryRegion(minX, minY, maxX, maxY float64) []uint64 {
	g.scratch = g.scratch[:0]

	minCol := int(minX*g.invCellSize) - 1
	maxCol := int(maxX*g.invCellSize) + 1
	minRow := int(minY*g.invCellSize) - 1
	maxRow := int(maxY*g.invCellSize) + 1

	if minCol < 0 {
		minCol = 0
	}
	if maxCol >= g.cols {
		maxCol = g.cols - 1
	}
	if minRow < 0 {
		minRow = 0
	}
	if maxRow >= g.rows {
		maxRow = g.rows - 1
	}

	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			idx := row*g.cols + col
			g.scratch = append(g.scratch, g.cells[idx]...)
		}
	}

	return g.scratch
}

// Len returns the number of ids currently in the grid.
func (g *Grid) Len() int {
	return len(g.where)
}

// Dimensions returns the grid dimensions.
func (g *Grid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}
