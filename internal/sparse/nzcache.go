package sparse

import "fmt"

// VerifyNzCache, when set, makes UpdateCachedNzCount re-fetch the count
// from the device and compare. The verification is a full device barrier,
// so it is meant for tests and debugging, never for hot paths.
var VerifyNzCache = false

// nzCache memoizes the live non-zero count. Computing it requires a device
// round-trip, so it is cached and explicitly invalidated on every mutation
// path that can change the element set.
type nzCache struct {
	valid bool
	n     int
}

func (c *nzCache) invalidate()  { c.valid = false }
func (c *nzCache) update(n int) { c.valid, c.n = true, n }
func (c *nzCache) has() bool    { return c.valid }

// fetchNzCount determines the live non-zero count from device-side arrays.
// This synchronizes the stream and is therefore expensive; NzCount caches
// the result.
func (m *Matrix[T]) fetchNzCount() (int, error) {
	switch {
	case m.format.Compressed():
		last := SecondaryIndexCount(m.rows, m.cols, 0, m.format) - 1
		m.dev.Stream().Synchronize()
		sec := m.secondaryIndex()
		return int(sec[last] - sec[0]), nil
	case m.format.Block():
		if m.format == BlockCol {
			return m.rows * m.blockSize, nil
		}
		return m.cols * m.blockSize, nil
	default:
		return 0, unsupported("fetchNzCount", m.format)
	}
}

// NzCount returns the live non-zero count, fetching from the device only
// when the cache is invalid.
func (m *Matrix[T]) NzCount() (int, error) {
	if err := m.checkValid("NzCount"); err != nil {
		return 0, err
	}
	if !m.nz.has() {
		n, err := m.fetchNzCount()
		if err != nil {
			return 0, err
		}
		m.nz.update(n)
	}
	return m.nz.n, nil
}

// HasCachedNzCount reports whether NzCount would answer without a device
// round-trip.
func (m *Matrix[T]) HasCachedNzCount() bool { return m.nz.has() }

// InvalidateCachedNzCount must be called after any device-side mutation of
// the element set performed outside the engine's own mutation paths.
func (m *Matrix[T]) InvalidateCachedNzCount() { m.nz.invalidate() }

// UpdateCachedNzCount sets the cache when the caller already knows the
// count host-side (for example right after a host import). With verify set
// it re-fetches and compares, trading a device barrier for a consistency
// check; see also VerifyNzCache.
func (m *Matrix[T]) UpdateCachedNzCount(n int, verify bool) error {
	m.nz.update(n)
	if verify || VerifyNzCache {
		return m.VerifyCachedNzCount()
	}
	return nil
}

// VerifyCachedNzCount re-fetches the count and fails if the cache
// disagrees: that indicates a missed invalidation somewhere.
func (m *Matrix[T]) VerifyCachedNzCount() error {
	if !m.nz.has() {
		return nil
	}
	n, err := m.fetchNzCount()
	if err != nil {
		return err
	}
	if n != m.nz.n {
		return fmt.Errorf("%w: cached %d, device %d", ErrNzCountMismatch, m.nz.n, n)
	}
	return nil
}
