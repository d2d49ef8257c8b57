package db

// ChannelSource implements pgx.CopyFromSource by reading rows from a channel,
// so a producer goroutine and the COPY writer run with natural backpressure.
type ChannelSource[T any] struct {
	ch      <-chan T
	values  func(T) []any
	current T
}

// NewChannelSource creates a CopyFromSource backed by ch. values turns a row
// into its COPY column values.
func NewChannelSource[T any](ch <-chan T, values func(T) []any) *ChannelSource[T] {
	return &ChannelSource[T]{ch: ch, values: values}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *ChannelSource[T]) Next() bool {
	row, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = row
	return true
}

// Values returns the current row's values in COPY column order.
func (s *ChannelSource[T]) Values() ([]any, error) {
	return s.values(s.current), nil
}

// Err is always nil: the producer reports its own errors.
func (s *ChannelSource[T]) Err() error {
	return nil
}
