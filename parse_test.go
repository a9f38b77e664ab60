package classscan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noRecoverable(t *testing.T) func(error) {
	return func(err error) {
		t.Errorf("unexpected recoverable error: %v", err)
	}
}

func discard() func(error) {
	return func(error) {}
}

func TestParseClassfilesSuccess(t *testing.T) {
	resources := []*fakeResource{
		{rel: "com/a/A.class", content: []byte("a")},
		{rel: "com/b/B.class", content: []byte("b")},
	}
	elt := testElement("/cp/dir", resources...)
	sink := NewMapSink()

	err := parseClassfiles(context.Background(), elt, 0, 2, drainingParser(), sink, noRecoverable(t), elt.log())
	require.NoError(t, err)

	assert.Equal(t, 2, sink.Len())
	for _, res := range resources {
		assert.Equal(t, 1, res.openCount(), "%s opened once", res.rel)
		assert.Equal(t, 1, res.closeCount(), "%s closed once", res.rel)
	}
}

func TestParseClassfilesExcludedRecord(t *testing.T) {
	res := &fakeResource{rel: "com/a/A.class"}
	elt := testElement("/cp/dir", res)
	sink := NewMapSink()
	excluding := &stubParser{fn: func(Element, string, io.Reader, Spec) (*ClassRecord, error) {
		return nil, nil
	}}

	err := parseClassfiles(context.Background(), elt, 0, 1, excluding, sink, noRecoverable(t), elt.log())
	require.NoError(t, err)

	assert.Equal(t, 0, sink.Len())
	assert.Equal(t, 1, res.closeCount())
}

func TestParseClassfilesOpenFailureIsRecoverable(t *testing.T) {
	broken := &fakeResource{rel: "com/a/A.class", openErr: errors.New("boom")}
	good := &fakeResource{rel: "com/b/B.class"}
	elt := testElement("/cp/dir", broken, good)
	sink := NewMapSink()

	var recovered []error
	err := parseClassfiles(context.Background(), elt, 0, 2, drainingParser(), sink,
		func(err error) { recovered = append(recovered, err) }, elt.log())
	require.NoError(t, err)

	assert.Len(t, recovered, 1)
	assert.ErrorIs(t, recovered[0], ErrResourceRead)
	assert.Equal(t, 1, sink.Len(), "remaining resources in the range are unaffected")
	assert.Equal(t, 1, good.closeCount())
}

func TestParseClassfilesParserReadFailureIsRecoverable(t *testing.T) {
	res := &fakeResource{rel: "com/a/A.class"}
	elt := testElement("/cp/dir", res)
	truncating := &stubParser{fn: func(_ Element, rel string, _ io.Reader, _ Spec) (*ClassRecord, error) {
		return nil, fmt.Errorf("%w: truncated classfile %s", ErrResourceRead, rel)
	}}

	err := parseClassfiles(context.Background(), elt, 0, 1, truncating, NewMapSink(), discard(), elt.log())
	require.NoError(t, err)
	assert.Equal(t, 1, res.closeCount(), "resource released on recoverable failure")
}

func TestParseClassfilesFatalParserError(t *testing.T) {
	bad := &fakeResource{rel: "com/a/Malformed.class"}
	never := &fakeResource{rel: "com/b/B.class"}
	elt := testElement("/cp/dir", bad, never)
	structural := errors.New("bad constant pool tag")
	failing := &stubParser{fn: func(Element, string, io.Reader, Spec) (*ClassRecord, error) {
		return nil, structural
	}}

	err := parseClassfiles(context.Background(), elt, 0, 2, failing, NewMapSink(), noRecoverable(t), elt.log())
	require.ErrorIs(t, err, structural)

	assert.Equal(t, 1, bad.closeCount(), "in-flight resource released before re-raise")
	assert.Equal(t, 0, never.openCount(), "dispatch stops at the fatal failure")
}

func TestParseClassfilesCloseFailureIsRecoverable(t *testing.T) {
	res := &fakeResource{rel: "com/a/A.class", closeErr: errors.New("close boom")}
	elt := testElement("/cp/dir", res)

	var recovered []error
	err := parseClassfiles(context.Background(), elt, 0, 1, drainingParser(), NewMapSink(),
		func(err error) { recovered = append(recovered, err) }, elt.log())
	require.NoError(t, err)
	assert.Len(t, recovered, 1)
}

func TestParseClassfilesCloseErrorAfterFatalErrorIsLogged(t *testing.T) {
	res := &fakeResource{rel: "com/a/A.class", closeErr: errors.New("close boom")}
	elt := testElement("/cp/dir", res)
	structural := errors.New("bad magic")
	failing := &stubParser{fn: func(Element, string, io.Reader, Spec) (*ClassRecord, error) {
		return nil, structural
	}}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := parseClassfiles(context.Background(), elt, 0, 1, failing, NewMapSink(), noRecoverable(t), logger)
	require.ErrorIs(t, err, structural,
		"the parser failure takes priority over the close failure")
	assert.NotErrorIs(t, err, ErrResourceRead)
	assert.Equal(t, 1, res.closeCount())
	assert.Contains(t, buf.String(), "close boom")
}

func TestParseClassfilesCancellation(t *testing.T) {
	res := &fakeResource{rel: "com/a/A.class"}
	elt := testElement("/cp/dir", res)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := parseClassfiles(ctx, elt, 0, 1, drainingParser(), NewMapSink(), noRecoverable(t), elt.log())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.openCount())
}

func TestPartitionRangesBalances(t *testing.T) {
	small := testElement("/cp/small", &fakeResource{rel: "A.class"})
	var many []*fakeResource
	for i := range 10 {
		many = append(many, &fakeResource{rel: fmt.Sprintf("com/x/C%d.class", i)})
	}
	big := testElement("/cp/big", many...)

	ranges := partitionRanges([]Element{small, big}, 4)

	require.Len(t, ranges, 4)
	assert.Equal(t, parseRange{elt: small, start: 0, end: 1}, ranges[0])
	assert.Equal(t, parseRange{elt: big, start: 0, end: 4}, ranges[1])
	assert.Equal(t, parseRange{elt: big, start: 4, end: 8}, ranges[2])
	assert.Equal(t, parseRange{elt: big, start: 8, end: 10}, ranges[3])
}

func TestParsePhaseFatalErrorCancelsSiblings(t *testing.T) {
	var resources []*fakeResource
	for i := range 64 {
		resources = append(resources, &fakeResource{rel: fmt.Sprintf("com/x/C%d.class", i)})
	}
	elt := testElement("/cp/dir", resources...)
	structural := errors.New("malformed")
	failing := &stubParser{fn: func(_ Element, rel string, _ io.Reader, _ Spec) (*ClassRecord, error) {
		if rel == "com/x/C0.class" {
			return nil, structural
		}
		return &ClassRecord{Path: rel}, nil
	}}

	cfg := newConfig([]Option{WithWorkers(4)})
	_, err := parsePhase(context.Background(), []Element{elt}, failing, NewMapSink(), cfg)
	require.ErrorIs(t, err, structural)

	// Whatever ran before cancellation released every opened stream.
	for _, res := range resources {
		assert.Equal(t, res.openCount(), res.closeCount(), "%s opened %d closed %d", res.rel, res.openCount(), res.closeCount())
	}
}
