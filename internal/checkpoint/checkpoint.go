// Package checkpoint reads and writes granular terrain state files so
// the settling phase can be skipped on later runs.
//
// The format is whitespace-delimited text: the simulation time on the
// first line, the body count on the second, then one line per body
// with its identifier, position, orientation quaternion, linear
// velocity, and quaternion rate.
package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/treadsim/cosim/pkg/core"
)

// ErrCountMismatch is returned when a checkpoint's body count does not
// match the number of bodies in the current simulation.
var ErrCountMismatch = errors.New("checkpoint: body count mismatch")

// Record is one body's saved state.
type Record struct {
	ID    int
	State core.BodyState
}

// Checkpoint is the full saved terrain state.
type Checkpoint struct {
	Time   float64
	Bodies []Record
}

// Write serializes the checkpoint to w.
func Write(w io.Writer, cp Checkpoint) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%v\n", cp.Time)
	fmt.Fprintf(bw, "%d\n", len(cp.Bodies))
	for _, rec := range cp.Bodies {
		s := rec.State
		fmt.Fprintf(bw, "%d %v %v %v %v %v %v %v %v %v %v %v %v %v %v\n",
			rec.ID,
			s.Pos.X(), s.Pos.Y(), s.Pos.Z(),
			s.Rot.W, s.Rot.V.X(), s.Rot.V.Y(), s.Rot.V.Z(),
			s.LinVel.X(), s.LinVel.Y(), s.LinVel.Z(),
			s.RotVel.W, s.RotVel.V.X(), s.RotVel.V.Y(), s.RotVel.V.Z())
	}
	return bw.Flush()
}

// Read parses a checkpoint from r. When expectCount is non-negative it
// is validated against the stored body count before any state is
// returned, so a stale file can never be partially applied.
func Read(r io.Reader, expectCount int) (Checkpoint, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<16), 1<<22)
	sc.Split(bufio.ScanWords)

	next := func() (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return sc.Text(), nil
	}
	nextFloat := func() (float64, error) {
		tok, err := next()
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(tok, 64)
	}

	var cp Checkpoint
	var err error
	if cp.Time, err = nextFloat(); err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: reading time: %w", err)
	}

	tok, err := next()
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: reading body count: %w", err)
	}
	count, err := strconv.Atoi(tok)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: parsing body count: %w", err)
	}
	if expectCount >= 0 && count != expectCount {
		return Checkpoint{}, fmt.Errorf("%w: file has %d, simulation has %d",
			ErrCountMismatch, count, expectCount)
	}

	cp.Bodies = make([]Record, 0, count)
	for i := 0; i < count; i++ {
		idTok, err := next()
		if err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: body %d: %w", i, err)
		}
		id, err := strconv.Atoi(idTok)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: body %d id: %w", i, err)
		}

		var vals [14]float64
		for k := range vals {
			if vals[k], err = nextFloat(); err != nil {
				return Checkpoint{}, fmt.Errorf("checkpoint: body %d: %w", i, err)
			}
		}

		cp.Bodies = append(cp.Bodies, Record{
			ID: id,
			State: core.BodyState{
				Pos:    mgl64.Vec3{vals[0], vals[1], vals[2]},
				Rot:    mgl64.Quat{W: vals[3], V: mgl64.Vec3{vals[4], vals[5], vals[6]}},
				LinVel: mgl64.Vec3{vals[7], vals[8], vals[9]},
				RotVel: mgl64.Quat{W: vals[10], V: mgl64.Vec3{vals[11], vals[12], vals[13]}},
			},
		})
	}
	return cp, nil
}

// Save writes the checkpoint to path, creating parent directories as
// needed by the caller.
func Save(path string, cp Checkpoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: creating %s: %w", path, err)
	}
	if err := Write(f, cp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads the checkpoint at path, validating the body count as in
// Read.
func Load(path string, expectCount int) (Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("checkpoint: opening %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, expectCount)
}
