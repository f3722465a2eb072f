// Package asciigrid reads single-band ESRI ASCII grid (.asc) files into an
// in-memory raster source.
package asciigrid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/strataview/strataview/internal/raster"
	"github.com/strataview/strataview/internal/raster/memgrid"
)

// Load opens and parses an .asc file.
func Load(path string) (raster.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ascii grid: %w", err)
	}
	defer func() { _ = f.Close() }()
	src, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// Parse reads the 6-line header (ncols, nrows, xllcorner, yllcorner,
// cellsize, nodata_value) followed by nrows x ncols values, north row first.
func Parse(r io.Reader) (raster.Source, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<16), 1<<22)

	hdr := map[string]float64{}
	var fields []string
	for len(hdr) < 6 && sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) == 2 {
			v, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: header %q: %v", raster.ErrInvalidRaster, parts[0], err)
			}
			hdr[strings.ToLower(parts[0])] = v
			continue
		}
		// first data row reached before 6 header lines
		fields = parts
		break
	}
	for _, k := range []string{"ncols", "nrows", "xllcorner", "yllcorner", "cellsize"} {
		if _, ok := hdr[k]; !ok {
			return nil, fmt.Errorf("%w: missing header %q", raster.ErrInvalidRaster, k)
		}
	}
	cols, rows := int(hdr["ncols"]), int(hdr["nrows"])
	if cols <= 0 || rows <= 0 || hdr["cellsize"] <= 0 {
		return nil, fmt.Errorf("%w: non-positive dimensions", raster.ErrInvalidRaster)
	}
	nodata, hasNodata := hdr["nodata_value"]

	g := memgrid.New(hdr["xllcorner"], hdr["yllcorner"], hdr["cellsize"], cols, rows)

	read := 0
	consume := func(parts []string) error {
		for _, tok := range parts {
			if read >= cols*rows {
				return fmt.Errorf("%w: more values than ncols*nrows", raster.ErrInvalidRaster)
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return fmt.Errorf("%w: value %q: %v", raster.ErrInvalidRaster, tok, err)
			}
			// file order is north to south; the grid stores row 0 south
			row := rows - 1 - read/cols
			col := read % cols
			if !hasNodata || v != nodata {
				g.Set(col, row, v)
			}
			read++
		}
		return nil
	}

	if fields != nil {
		if err := consume(fields); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if err := consume(strings.Fields(sc.Text())); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read ascii grid: %w", err)
	}
	if read != cols*rows {
		return nil, fmt.Errorf("%w: expected %d values, got %d", raster.ErrInvalidRaster, cols*rows, read)
	}
	return g, nil
}
