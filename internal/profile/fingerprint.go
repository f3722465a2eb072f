package profile

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint hashes the canonical field encoding of a configuration.
// Structural equality of two configurations implies equal fingerprints, so
// the value doubles as the cache key. The encoding is versioned by the
// leading tag byte of each section; changing the layout changes every hash,
// which only costs a cold cache.
func (c *Configuration) Fingerprint() uint64 {
	d := xxhash.New()

	writeString(d, string(c.Raster))
	writeInt(d, int64(c.Band))
	writeFloat(d, c.Step)
	writeFloat(d, c.HorizontalScale)
	writeFloat(d, c.VerticalExaggeration)

	writeInt(d, int64(len(c.Line)))
	for _, p := range c.Line {
		writeFloat(d, p[0])
		writeFloat(d, p[1])
	}

	if c.Geology == nil {
		writeTag(d, 0)
	} else {
		writeTag(d, 1)
		writeString(d, string(c.Geology.Layer))
		writeString(d, c.Geology.NameField)
	}

	if c.Structure == nil {
		writeTag(d, 0)
	} else {
		writeTag(d, 2)
		writeString(d, string(c.Structure.Layer))
		writeString(d, c.Structure.DipField)
		writeString(d, c.Structure.StrikeField)
		writeFloat(d, c.Structure.Buffer)
		writeFloat(d, c.Structure.DipLineScale)
	}

	if c.Drillholes == nil {
		writeTag(d, 0)
	} else {
		writeTag(d, 3)
		writeString(d, string(c.Drillholes.Collars))
		writeString(d, string(c.Drillholes.Survey))
		writeString(d, string(c.Drillholes.Intervals))
		writeString(d, c.Drillholes.HoleIDField)
		writeString(d, c.Drillholes.ElevationField)
		writeString(d, c.Drillholes.DepthField)
		writeString(d, c.Drillholes.AzimuthField)
		writeString(d, c.Drillholes.InclinationField)
		writeString(d, c.Drillholes.FromField)
		writeString(d, c.Drillholes.ToField)
		writeString(d, c.Drillholes.LithologyField)
		writeFloat(d, c.Drillholes.Buffer)
	}

	writeInt(d, int64(c.MaxPreviewPoints))
	if c.AdaptiveSampling {
		writeTag(d, 1)
	} else {
		writeTag(d, 0)
	}
	writeInt(d, int64(c.ViewportWidthPx))

	return d.Sum64()
}

func writeTag(d *xxhash.Digest, t byte) {
	_, _ = d.Write([]byte{t})
}

func writeInt(d *xxhash.Digest, v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	_, _ = d.Write(b[:])
}

func writeFloat(d *xxhash.Digest, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	_, _ = d.Write(b[:])
}

// writeString is length-prefixed so adjacent fields cannot alias
// ("ab","c" vs "a","bc").
func writeString(d *xxhash.Digest, s string) {
	writeInt(d, int64(len(s)))
	_, _ = d.WriteString(s)
}
