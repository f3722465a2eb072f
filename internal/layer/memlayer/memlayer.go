// Package memlayer is a slice-backed layer for tests and loaders.
package memlayer

import "github.com/strataview/strataview/internal/layer"

type Layer struct {
	feats []layer.Feature
}

var _ layer.Layer = (*Layer)(nil)

func New(feats ...layer.Feature) *Layer {
	return &Layer{feats: feats}
}

func (l *Layer) Append(f layer.Feature) {
	l.feats = append(l.feats, f)
}

func (l *Layer) Features() []layer.Feature { return l.feats }
