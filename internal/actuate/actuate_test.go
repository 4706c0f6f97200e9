package actuate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/device"
)

var (
	on  = control.Binary(true)
	off = control.Binary(false)
)

type rig struct {
	light, heater, base, acid *device.FakeOutput
	actuator                  *Actuator
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{
		light:  device.NewFakeOutput("light"),
		heater: device.NewFakeOutput("heater"),
		base:   device.NewFakeOutput("base"),
		acid:   device.NewFakeOutput("acid"),
	}
	light, err := control.NewTimedOutput("light", r.light, control.At(5, 0, 0), 8*time.Hour)
	require.NoError(t, err)
	heater, err := control.NewThreshold("heater", device.NewFakeInput("10"), r.heater, 20, time.Minute)
	require.NoError(t, err)
	ph, err := control.NewBidirectionalThreshold("ph", device.NewFakeInput("7"), r.base, r.acid, 6.5, 7.5, time.Minute)
	require.NoError(t, err)

	g := control.NewGroup().Add(light).Add(heater).Add(ph)
	require.NoError(t, g.Err())
	r.actuator = New(g, WithLogger(testr.New(t)))
	return r
}

func msg(id string, v control.Value) control.Message {
	return control.Message{ControllerID: id, Value: v, Timestamp: time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)}
}

func TestApplyBinary(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	require.NoError(t, r.actuator.Apply(ctx, msg("light", on)))
	require.NoError(t, r.actuator.Apply(ctx, msg("light", off)))

	if diff := cmp.Diff([]control.Value{on, off}, r.light.Writes()); diff != "" {
		t.Errorf("light writes (-want +got):\n%s", diff)
	}
	assert.Empty(t, r.heater.Writes())
}

func TestApplyDirectionDrivesBothOutputs(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	require.NoError(t, r.actuator.Apply(ctx, msg("ph", control.Directional(control.DirectionIncreasing))))
	require.NoError(t, r.actuator.Apply(ctx, msg("ph", control.Directional(control.DirectionDecreasing))))
	require.NoError(t, r.actuator.Apply(ctx, msg("ph", control.Directional(control.DirectionIdle))))

	if diff := cmp.Diff([]control.Value{on, off}, r.base.Writes()); diff != "" {
		t.Errorf("base writes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]control.Value{off, on, off}, r.acid.Writes()); diff != "" {
		t.Errorf("acid writes (-want +got):\n%s", diff)
	}
}

func TestApplySuppressesRepeatedValue(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.actuator.Apply(ctx, msg("heater", on)))
	}
	assert.Equal(t, []control.Value{on}, r.heater.Writes())
}

func TestApplyRetriesAfterWriteFailure(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	boom := errors.New("relay board offline")

	r.heater.SetWriteError(boom)
	err := r.actuator.Apply(ctx, msg("heater", on))
	var werr *OutputWriteError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "heater", werr.ControllerID)
	assert.ErrorIs(t, err, boom)

	r.heater.SetWriteError(nil)
	require.NoError(t, r.actuator.Apply(ctx, msg("heater", on)))
	assert.Equal(t, []control.Value{on}, r.heater.Writes())
}

func TestApplyRejectsMismatchedValues(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	assert.Error(t, r.actuator.Apply(ctx, msg("unknown", on)))
	assert.Error(t, r.actuator.Apply(ctx, msg("ph", on)))
	assert.Error(t, r.actuator.Apply(ctx, msg("light", control.Directional(control.DirectionIdle))))
}

func TestPublishContinuesPastFailures(t *testing.T) {
	r := newRig(t)
	r.light.SetWriteError(errors.New("stuck"))

	err := r.actuator.Publish(context.Background(), []control.Message{msg("light", on), msg("heater", on)})
	assert.Error(t, err)
	assert.Equal(t, []control.Value{on}, r.heater.Writes())
}

func TestRelease(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.actuator.Apply(ctx, msg("light", on)))
	require.NoError(t, r.actuator.Release(ctx))

	assert.Equal(t, []control.Value{on, off}, r.light.Writes())
	assert.Equal(t, []control.Value{off}, r.base.Writes())
	assert.Equal(t, []control.Value{off}, r.acid.Writes())
}

func TestSyncRewritesCachedLevels(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	require.NoError(t, r.actuator.Apply(ctx, msg("light", off)))
	require.NoError(t, r.actuator.Apply(ctx, msg("light", off)))
	assert.Equal(t, []control.Value{off}, r.light.Writes(), "repeat suppressed before sync")

	require.NoError(t, r.actuator.Sync(ctx, []control.Message{
		msg("light", off),
		msg("ph", control.Directional(control.DirectionIdle)),
	}))
	assert.Equal(t, []control.Value{off, off}, r.light.Writes())
	assert.Equal(t, []control.Value{off}, r.base.Writes())
	assert.Equal(t, []control.Value{off}, r.acid.Writes())
	assert.Empty(t, r.heater.Writes(), "controllers not in the batch are untouched")
}

func TestSyncClearsRelayLeftOnOutsideWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	light, err := control.NewTimedOutput("light", &device.FileOutput{Path: path}, control.At(5, 0, 0), 8*time.Hour)
	require.NoError(t, err)
	g := control.NewGroup().Add(light)
	a := New(g, WithLogger(testr.New(t)))

	evening := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	require.NoError(t, a.Sync(context.Background(), g.Current(evening)))

	// Outside the window the controller never emits, so only Sync can clear it.
	m, err := light.Evaluate(context.Background(), evening.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, m)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0", string(b))
}
