package spatial

import (
	"math"
)

// FlowField provides O(1) per-agent steering via a precomputed vector field
// toward a single goal. A BFS from the goal fills an integration field; the
// flow vector at each cell points at its cheapest neighbor. One field is
// shared by every agent chasing the same objective, so the cost is paid once
// per goal change rather than per agent per tick.
type FlowField struct {
	cols, rows  int
	cellSize    float64
	invCellSize float64
	integration []float32 // cost to reach the goal from each cell
	flowX       []float32
	flowY       []float32
	blocked     []bool // impassable cells
	queue       []int  // reusable BFS queue
}

// NewFlowField creates a field for the given world size. Smaller cells give
// smoother paths at more memory and regeneration cost.
func NewFlowField(worldWidth, worldHeight, cellSize float64) *FlowField {
	cols := int(math.Ceil(worldWidth / cellSize))
	rows := int(math.Ceil(worldHeight / cellSize))

	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	size := cols * rows

	return &FlowField{
		cols:        cols,
		rows:        rows,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		integration: make([]float32, size),
		flowX:       make([]float32, size),
		flowY:       make([]float32, size),
		blocked:     make([]bool, size),
		queue:       make([]int, 0, size),
	}
}

// SetCellBlocked marks a single cell as impassable by world position.
func (f *FlowField) SetCellBlocked(worldX, worldY float64, isBlocked bool) {
	col := int(worldX * f.invCellSize)
	row := int(worldY * f.invCellSize)
	if col < 0 || col >= f.cols || row < 0 || row >= f.rows {
		return
	}
	f.blocked[row*f.cols+col] = isBlocked
}

// ClearBlocked unblocks every cell.
func (f *FlowField) ClearBlocked() {
	for i := range f.blocked {
		f.blocked[i] = false
	}
}

// Generate computes the field toward (goalX, goalY). Call when the goal or
// blocked cells change, not per tick.
func (f *FlowField) Generate(goalX, goalY float64) {
	maxCost := float32(math.MaxFloat32)

	for i := range f.integration {
		f.integration[i] = maxCost
	}

	goalCol := int(goalX * f.invCellSize)
	goalRow := int(goalY * f.invCellSize)

	if goalCol < 0 {
		goalCol = 0
	}
	if goalCol >= f.cols {
		goalCol = f.cols - 1
	}
	if goalRow < 0 {
		goalRow = 0
	}
	if goalRow >= f.rows {
		goalRow = f.rows - 1
	}

	goalIdx := goalRow*f.cols + goalCol
	if f.blocked[goalIdx] {
		return
	}

	f.integration[goalIdx] = 0

	f.queue = f.queue[:0]
	f.queue = append(f.queue, goalIdx)

	// 8-way connectivity with sqrt(2) diagonal cost
	dx := []int{-1, 0, 1, -1, 1, -1, 0, 1}
	dy := []int{-1, -1, -1, 0, 0, 1, 1, 1}
	cost := []float32{1.41421356, 1.0, 1.41421356, 1.0, 1.0, 1.41421356, 1.0, 1.41421356}

	head := 0
	for head < len(f.queue) {
		current := f.queue[head]
		head++

		row := current / f.cols
		col := current % f.cols
		currentCost := f.integration[current]

		for i := 0; i < 8; i++ {
			nc := col + dx[i]
			nr := row + dy[i]

			if nc < 0 || nc >= f.cols || nr < 0 || nr >= f.rows {
				continue
			}

			nidx := nr*f.cols + nc
			if f.blocked[nidx] {
				continue
			}

			newCost := currentCost + cost[i]
			if newCost < f.integration[nidx] {
				f.integration[nidx] = newCost
				f.queue = append(f.queue, nidx)
			}
		}
	}

	// Gradient descent: each cell points at its cheapest neighbor.
	for idx := 0; idx < len(f.integration); idx++ {
		if f.integration[idx] == maxCost {
			f.flowX[idx], f.flowY[idx] = 0, 0
			continue
		}

		row := idx / f.cols
		col := idx % f.cols
		bestDX, bestDY := float32(0), float32(0)
		bestCost := f.integration[idx]

		for i := 0; i < 8; i++ {
			nc := col + dx[i]
			nr := row + dy[i]

			if nc < 0 || nc >= f.cols || nr < 0 || nr >= f.rows {
				continue
			}

			nidx := nr*f.cols + nc
			if f.integration[nidx] < bestCost {
				bestCost = f.integration[nidx]
				bestDX = float32(dx[i])
				bestDY = float32(dy[i])
			}
		}

		length := float32(math.Sqrt(float64(bestDX*bestDX + bestDY*bestDY)))
		if length > 0 {
			f.flowX[idx] = bestDX / length
			f.flowY[idx] = bestDY / length
		} else {
			f.flowX[idx] = 0
			f.flowY[idx] = 0
		}
	}
}

// Lookup returns the flow direction at world position (x, y).
// Returns (0, 0) out of bounds or unreachable.
func (f *FlowField) Lookup(x, y float64) (vx, vy float32) {
	col := int(x * f.invCellSize)
	row := int(y * f.invCellSize)

	if col < 0 || col >= f.cols || row < 0 || row >= f.rows {
		return 0, 0
	}

	idx := row*f.cols + col
	return f.flowX[idx], f.flowY[idx]
}

// Dimensions returns the field dimensions.
func (f *FlowField) Dimensions() (cols, rows int, cellSize float64) {
	return f.cols, f.rows, f.cellSize
}
