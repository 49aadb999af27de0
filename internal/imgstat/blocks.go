package imgstat

// DefaultBlockSize is the tile edge used when a module does not pick its own.
const DefaultBlockSize = 32

// Block is one square tile of a raster.
type Block struct {
	X, Y int
	Size int
}

// Blocks tiles a w×h raster into size×size blocks in row-major order.
// Partial tiles at the right and bottom edges are discarded.
func Blocks(w, h, size int) []Block {
	if size <= 0 || w < size || h < size {
		return nil
	}
	cols, rows := w/size, h/size
	out := make([]Block, 0, cols*rows)
	for by := 0; by < rows; by++ {
		for bx := 0; bx < cols; bx++ {
			out = append(out, Block{X: bx * size, Y: by * size, Size: size})
		}
	}
	return out
}

// Values copies the samples of b out of p.
func (b Block) Values(p *Plane) []float64 {
	return p.Region(b.X, b.Y, b.Size, b.Size)
}

// BlockMeans returns the mean of every block of p.
func BlockMeans(p *Plane, blocks []Block) []float64 {
	out := make([]float64, len(blocks))
	for i, b := range blocks {
		out[i] = Mean(b.Values(p))
	}
	return out
}

// BlockVariances returns the variance of every block of p.
func BlockVariances(p *Plane, blocks []Block) []float64 {
	out := make([]float64, len(blocks))
	for i, b := range blocks {
		out[i] = Variance(b.Values(p))
	}
	return out
}
