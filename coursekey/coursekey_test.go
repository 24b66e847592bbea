package coursekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		org     string
		course  string
		run     string
		wantErr bool
	}{
		{name: "slash form", raw: "edX/DemoX/Demo_Course", org: "edX", course: "DemoX", run: "Demo_Course"},
		{name: "v1 form", raw: "course-v1:MITx+6.002x+2012_Fall", org: "MITx", course: "6.002x", run: "2012_Fall"},
		{name: "too few parts", raw: "edX/DemoX", wantErr: true},
		{name: "too many parts", raw: "a/b/c/d", wantErr: true},
		{name: "empty part", raw: "a//c", wantErr: true},
		{name: "spaces", raw: "a b/c/d", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "v1 with slashes", raw: "course-v1:a/b/c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Parse(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.org, k.Org)
			assert.Equal(t, tt.course, k.Course)
			assert.Equal(t, tt.run, k.Run)
			assert.Equal(t, tt.raw, k.String())
		})
	}
}

func TestAlternateAndEquivalent(t *testing.T) {
	slash := MustParse("edX/DemoX/Demo_Course")
	assert.Equal(t, "course-v1:edX+DemoX+Demo_Course", slash.Alternate())

	v1 := MustParse(slash.Alternate())
	assert.True(t, slash.Equivalent(v1))
	assert.Equal(t, "edX/DemoX/Demo_Course", v1.Alternate())
	assert.False(t, slash.Equivalent(MustParse("edX/DemoX/Other")))
}
