package statsig

import "sync/atomic"

// snapshot is one immutable catalog of specs. A refresh builds a whole new
// snapshot and swaps it in; readers hold a snapshot pointer for the length
// of an evaluation and never see a torn catalog.
type snapshot struct {
	gates          map[string]configSpec
	dynamicConfigs map[string]configSpec
	layerConfigs   map[string]configSpec
	lastUpdateTime int64
}

type store struct {
	snap atomic.Pointer[snapshot]
}

func newStore() *store {
	s := &store{}
	s.snap.Store(&snapshot{
		gates:          map[string]configSpec{},
		dynamicConfigs: map[string]configSpec{},
		layerConfigs:   map[string]configSpec{},
	})
	return s
}

func (s *store) getGate(name string) (configSpec, bool) {
	spec, ok := s.snap.Load().gates[name]
	return spec, ok
}

func (s *store) getDynamicConfig(name string) (configSpec, bool) {
	spec, ok := s.snap.Load().dynamicConfigs[name]
	return spec, ok
}

// getLayerConfig is reserved; layer_configs are kept in the snapshot but
// the evaluator has no layer semantics.
func (s *store) getLayerConfig(name string) (configSpec, bool) {
	spec, ok := s.snap.Load().layerConfigs[name]
	return spec, ok
}

func (s *store) lastUpdateTime() int64 {
	return s.snap.Load().lastUpdateTime
}

// replaceAll swaps in a new catalog built from a download response. The
// update-time cursor is monotone; a response with an older time keeps the
// current cursor.
func (s *store) replaceAll(res downloadConfigSpecsResponse) {
	next := &snapshot{
		gates:          specsByName(res.FeatureGates),
		dynamicConfigs: specsByName(res.DynamicConfigs),
		layerConfigs:   specsByName(res.LayerConfigs),
		lastUpdateTime: res.Time,
	}
	if cur := s.snap.Load().lastUpdateTime; cur > next.lastUpdateTime {
		next.lastUpdateTime = cur
	}
	s.snap.Store(next)
}

func specsByName(specs []configSpec) map[string]configSpec {
	m := make(map[string]configSpec, len(specs))
	for _, spec := range specs {
		m[spec.Name] = spec
	}
	return m
}
