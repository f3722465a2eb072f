package asciigrid

import (
	"errors"
	"strings"
	"testing"

	"github.com/strataview/strataview/internal/raster"
)

const sample = `ncols 3
nrows 2
xllcorner 100
yllcorner 200
cellsize 10
NODATA_value -9999
1 2 3
4 -9999 6
`

func TestParse_ValuesAndNodata(t *testing.T) {
	src, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	if src.Resolution() != 10 || src.Bands() != 1 {
		t.Fatalf("resolution=%v bands=%d", src.Resolution(), src.Bands())
	}

	// north-west cell (first value in the file) sits at the top row
	if v, ok := src.Sample(105, 215, 1); !ok || v != 1 {
		t.Fatalf("NW cell: got %v %v, want 1 true", v, ok)
	}
	// south-east cell is the last value
	if v, ok := src.Sample(125, 205, 1); !ok || v != 6 {
		t.Fatalf("SE cell: got %v %v, want 6 true", v, ok)
	}
	// nodata cell
	if _, ok := src.Sample(115, 205, 1); ok {
		t.Fatalf("nodata cell must not sample")
	}
	// outside extent
	if _, ok := src.Sample(99, 215, 1); ok {
		t.Fatalf("outside extent must not sample")
	}
}

func TestParse_TruncatedDataFails(t *testing.T) {
	broken := strings.Replace(sample, "4 -9999 6\n", "4 -9999\n", 1)
	if _, err := Parse(strings.NewReader(broken)); !errors.Is(err, raster.ErrInvalidRaster) {
		t.Fatalf("got %v, want ErrInvalidRaster", err)
	}
}

func TestParse_MissingHeaderFails(t *testing.T) {
	if _, err := Parse(strings.NewReader("ncols 3\n1 2 3\n")); !errors.Is(err, raster.ErrInvalidRaster) {
		t.Fatalf("got %v, want ErrInvalidRaster", err)
	}
}
