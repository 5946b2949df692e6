package config

import (
	"encoding/json"
	"errors"
	"os"
)

// Store backend selection values.
const (
	StoreMemory  = "memory"
	StoreMongoDB = "mongodb"
)

type Config struct {
	Database struct {
		Host               string `json:"host"`
		Port               uint64 `json:"port"`
		Username           string `json:"username"`
		Password           string `json:"password"`
		Database           string `json:"database"`
		UseTLS             bool   `json:"use_tls"`
		ConnectTimeout     string `json:"connect_timeout"`
		SocketTimeout      string `json:"socket_timeout"`
		ConnectIdleTimeout string `json:"connect_idle_timeout"`
		OperationTimeout   string `json:"operation_timeout"`
		Heartbeat          string `json:"heartbeat"`
		MinPoolSize        uint64 `json:"min_pool_size"`
		MaxPoolSize        uint64 `json:"max_pool_size"`
	} `json:"database"`
	// Store selects the durable backend: "mongodb", or "memory" for a
	// process-local store that forgets everything on restart.
	Store     string `json:"store"`
	DebugMode bool   `json:"debug_mode"`
	AppName   string `json:"app_name"`
	AppPort   int    `json:"app_port"`
}

var config Config
var initialized = false

func defaultConfig() Config {
	var c Config
	c.Store = StoreMemory
	c.AppName = "twiiiiter"
	c.AppPort = 7878
	c.Database.OperationTimeout = "5s"
	c.Database.ConnectTimeout = "10s"
	c.Database.SocketTimeout = "10s"
	c.Database.ConnectIdleTimeout = "5m"
	c.Database.Heartbeat = "10s"
	c.Database.MinPoolSize = 1
	c.Database.MaxPoolSize = 16
	return c
}

func ReadConfig() (Config, error) {
	config = defaultConfig()

	bytes, err := os.ReadFile(Path)
	if err != nil {
		writer, _ := os.OpenFile(Path, os.O_WRONLY|os.O_CREATE, 0644)
		data, _ := json.MarshalIndent(config, "", "\t")
		_, _ = writer.Write(data)
		_ = writer.Close()
		initialized = true
		return config, nil
	}

	err = json.Unmarshal(bytes, &config)
	if err != nil {
		return config, errors.New("the configuration file does not contain valid JSON")
	}

	initialized = true
	return config, nil
}

// Path of the configuration file, overridable by the --config flag.
var Path = "config.json"

func GetConfig() (Config, error) {
	if initialized {
		return config, nil
	}
	return ReadConfig()
}
