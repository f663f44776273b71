package checkpoint

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treadsim/cosim/pkg/core"
)

func sample() Checkpoint {
	return Checkpoint{
		Time: 0.4,
		Bodies: []Record{
			{
				ID: 100000,
				State: core.BodyState{
					Pos:    mgl64.Vec3{0.1, -0.2, 0.03},
					Rot:    mgl64.QuatIdent(),
					LinVel: mgl64.Vec3{0.001, 0, -0.05},
				},
			},
			{
				ID: 100001,
				State: core.BodyState{
					Pos:    mgl64.Vec3{-0.4, 0.11, 0.021},
					Rot:    mgl64.Quat{W: 0.9, V: mgl64.Vec3{0.1, 0.2, 0.3}},
					LinVel: mgl64.Vec3{0, 0.002, 0},
					RotVel: mgl64.Quat{W: 0.01, V: mgl64.Vec3{0, 0, 0.02}},
				},
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	cp := sample()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cp))

	got, err := Read(&buf, len(cp.Bodies))
	require.NoError(t, err)

	assert.Equal(t, cp.Time, got.Time)
	require.Len(t, got.Bodies, 2)
	assert.Equal(t, cp.Bodies, got.Bodies)
}

func TestCountMismatchFatalBeforeState(t *testing.T) {
	cp := sample()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cp))

	got, err := Read(&buf, 3)
	assert.ErrorIs(t, err, ErrCountMismatch)
	assert.Empty(t, got.Bodies, "no state may be returned on mismatch")
}

func TestNegativeExpectSkipsValidation(t *testing.T) {
	cp := sample()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cp))

	got, err := Read(&buf, -1)
	require.NoError(t, err)
	assert.Len(t, got.Bodies, 2)
}

func TestTruncatedFile(t *testing.T) {
	cp := sample()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, cp))

	short := buf.String()[:buf.Len()/2]
	_, err := Read(bytes.NewBufferString(short), -1)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.dat")
	cp := sample()
	require.NoError(t, Save(path, cp))

	got, err := Load(path, 2)
	require.NoError(t, err)
	assert.Equal(t, cp, got)
}
