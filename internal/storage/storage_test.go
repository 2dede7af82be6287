package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wq5881898/Scraper/internal/domain"
)

type fakeSink struct {
	name     string
	writes   []domain.Result
	writeErr error
	closed   bool
	closeErr error
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Write(ctx context.Context, res domain.Result) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, res)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return f.closeErr
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	m := NewMultiSink(testLogger(), a, b)

	res := domain.Result{TaskID: "t1", Success: true}
	require.NoError(t, m.Write(context.Background(), res))

	require.Len(t, a.writes, 1)
	require.Len(t, b.writes, 1)
	assert.Equal(t, "t1", a.writes[0].TaskID)
}

func TestMultiSinkFailingSinkDoesNotStopOthers(t *testing.T) {
	a := &fakeSink{name: "a", writeErr: errors.New("backend down")}
	b := &fakeSink{name: "b"}
	m := NewMultiSink(testLogger(), a, b)

	require.NoError(t, m.Write(context.Background(), domain.Result{TaskID: "t1"}))

	assert.Empty(t, a.writes)
	require.Len(t, b.writes, 1)
}

func TestMultiSinkCloseJoinsErrors(t *testing.T) {
	a := &fakeSink{name: "a", closeErr: errors.New("close a")}
	b := &fakeSink{name: "b"}
	c := &fakeSink{name: "c", closeErr: errors.New("close c")}
	m := NewMultiSink(testLogger(), a, b, c)

	err := m.Close()
	require.Error(t, err)
	assert.ErrorContains(t, err, "close a")
	assert.ErrorContains(t, err, "close c")
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.True(t, c.closed)
}

func TestHeaderCarrierRoundTrip(t *testing.T) {
	carrier := make(HeaderCarrier, 0)

	carrier.Set("traceparent", "00-abc-def-01")
	carrier.Set("baggage", "k=v")
	carrier.Set("traceparent", "00-xyz-uvw-01") // replaces, not appends

	assert.Equal(t, "00-xyz-uvw-01", carrier.Get("traceparent"))
	assert.Equal(t, "k=v", carrier.Get("baggage"))
	assert.Empty(t, carrier.Get("absent"))
	assert.ElementsMatch(t, []string{"traceparent", "baggage"}, carrier.Keys())
}
