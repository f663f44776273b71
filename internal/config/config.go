package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configuration from a JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./cosimlogs")
	viper.SetDefault("outDir", "./cosimout")

	viper.SetDefault("sim.terrainType", "rigid")
	viper.SetDefault("sim.contactMethod", "penalty")
	viper.SetDefault("sim.numTires", 1)
	viper.SetDefault("sim.macroStep", 1e-3)
	viper.SetDefault("sim.numSteps", 1000)
	viper.SetDefault("sim.useCheckpoint", false)
	viper.SetDefault("sim.writeCheckpoint", false)

	viper.SetDefault("terrain.stepSize", 1e-4)
	viper.SetDefault("terrain.length", 2.0)
	viper.SetDefault("terrain.width", 0.5)
	viper.SetDefault("terrain.height", 1.0)
	viper.SetDefault("terrain.thickness", 0.2)
	viper.SetDefault("terrain.platformLength", 1.0)
	viper.SetDefault("terrain.settlingTime", 0.4)

	viper.SetDefault("granular.radius", 0.01)
	viper.SetDefault("granular.density", 2000.0)
	viper.SetDefault("granular.numLayers", 5)

	viper.SetDefault("proxy.fixed", false)
	viper.SetDefault("proxy.nodeMass", 1.0)
	viper.SetDefault("proxy.nodeRadius", 0.01)
	viper.SetDefault("proxy.faceMass", 1.0)

	viper.SetDefault("tire.stepSize", 1e-4)
	viper.SetDefault("tire.ringRadius", 0.46)
	viper.SetDefault("tire.sectionRadius", 0.12)
	viper.SetDefault("tire.divsMajor", 24)
	viper.SetDefault("tire.divsMinor", 8)
	viper.SetDefault("tire.mass", 45.0)
	viper.SetDefault("tire.forwardSpeed", 1.0)

	viper.SetDefault("transport.mode", "inproc")
	viper.SetDefault("transport.listenAddr", "localhost:9040")
	viper.SetDefault("transport.terrainAddr", "ws://localhost:9040/cosim")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "cosim")

	viper.SetDefault("storage.enabled", true)
	viper.SetDefault("storage.sqlitePath", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "cosim-metrics")
	viper.SetDefault("influx.bucket", "cosim_performance")

	viper.SetDefault("monitor.interval", "10s")

	viper.SetConfigName("cosim.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}
