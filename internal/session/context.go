package session

import "context"

type recordContextKey struct{}

// NewContext returns a copy of ctx carrying rec. Request-issuing calls take
// their credential from here rather than from shared client state.
func NewContext(ctx context.Context, rec *Record) context.Context {
	return context.WithValue(ctx, recordContextKey{}, rec)
}

// FromContext returns the record attached to ctx, if any
func FromContext(ctx context.Context) (*Record, bool) {
	if ctx == nil {
		return nil, false
	}
	rec, ok := ctx.Value(recordContextKey{}).(*Record)
	return rec, ok && rec != nil
}
