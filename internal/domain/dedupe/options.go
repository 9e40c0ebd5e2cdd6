package dedupe

// DefaultMaxSize covers one week of 15-minute slots.
const DefaultMaxSize = 7 * 24 * 4

// Option applies a configuration option to the memo.
type Option func(*slotMemo)

// WithMaxSize sets the number of slots kept in memory.
// A non-positive size disables eviction.
func WithMaxSize(maxSize int) Option {
	return func(m *slotMemo) {
		m.maxSize = maxSize
	}
}
