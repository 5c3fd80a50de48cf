package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphDump(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		path    string
		want    Format
		wantExt string
	}{
		{path: "out/machine.dot", want: FormatDot},
		{path: "events.svg", want: FormatSVG},
		{path: "props.png", wantExt: "png"},
		{path: "noext", wantExt: ""},
		{path: "upper.DOT", wantExt: "DOT"},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			d, err := GraphDump(DumpProperties, tc.path)
			if tc.want == "" {
				var extErr *UnknownExtensionError
				require.True(t, errors.As(err, &extErr))
				assert.Equal(t, tc.wantExt, extErr.Ext)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, Dump{Kind: DumpProperties, Format: tc.want, Path: tc.path}, d)
			assert.True(t, d.IsGraph())
		})
	}
}

func TestInfoRequest_Dumps(t *testing.T) {
	t.Parallel()
	req := InfoRequest{
		InvariantGraph: "inv.svg",
		MachineGraph:   "m.dot",
		EventGraph:     "e.txt",
		EventB:         "model.eventb",
	}

	dumps, errs := req.Dumps()

	want := []Dump{
		{Kind: DumpMachineHierarchy, Format: FormatDot, Path: "m.dot"},
		{Kind: DumpInvariant, Format: FormatSVG, Path: "inv.svg"},
		{Kind: DumpEventB, Format: FormatProlog, Path: "model.eventb"},
	}
	if diff := cmp.Diff(want, dumps); diff != "" {
		t.Errorf("Dumps() mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], `unknown extension "txt"`)
	assert.False(t, dumps[2].IsGraph())
	assert.True(t, req.HasGraphs())
	assert.False(t, req.Empty())
}

func TestInfoRequest_Empty(t *testing.T) {
	t.Parallel()
	assert.True(t, InfoRequest{}.Empty())
	assert.False(t, InfoRequest{}.HasGraphs())
	assert.False(t, InfoRequest{EventB: "x.eventb"}.HasGraphs())

	dumps, errs := InfoRequest{}.Dumps()
	assert.Empty(t, dumps)
	assert.Empty(t, errs)
}
