// Package influx ships per-step timing telemetry to InfluxDB. The
// writer is optional; when the server is unreachable or disabled the
// manager stays invalid and writes become no-ops.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const bucketSteps = "cosim_performance"

// Manager handles the InfluxDB connection and write API.
type Manager struct {
	Client  influxdb2.Client
	Writer  influxdb2_api.WriteAPI
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates an unconnected manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{Logger: log}
}

// Connect initializes the client and verifies the server is reachable.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return errors.New("influx.enabled is false")
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.Client.Ping(context.Background())
	if err != nil || !running {
		m.IsValid = false
		m.Logger.Warn().Err(err).Msg("InfluxDB unreachable, telemetry disabled")
		return nil
	}

	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), bucketSteps)
	m.IsValid = true
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

// WriteStep records the timing of one synchronization step.
func (m *Manager) WriteStep(step int, simTime float64, terrainWall, tireWall time.Duration, contacts int) {
	if !m.IsValid {
		return
	}
	p := influxdb2.NewPointWithMeasurement("cosim_step").
		AddTag("component", "driver").
		AddField("step", step).
		AddField("sim_time", simTime).
		AddField("terrain_wall_ms", float64(terrainWall.Microseconds())/1000.0).
		AddField("tire_wall_ms", float64(tireWall.Microseconds())/1000.0).
		AddField("contacts", contacts).
		SetTime(time.Now())
	m.Writer.WritePoint(p)
}

// Close flushes pending points and shuts the client down.
func (m *Manager) Close() {
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
}
