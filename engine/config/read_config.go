package config

import (
	"encoding/json"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

const (
	_DEFAULT_CONFIG_FILE = "gwactor.ini"
	_DEFAULT_LOG_LEVEL   = "debug"
	_DEFAULT_STORAGE_DB  = "gwactor"

	// MinServerID is the minimal valid server id
	MinServerID = 1000
	// MaxServerID is the maximal valid server id
	MaxServerID = 9999
)

var (
	configFilePath = _DEFAULT_CONFIG_FILE
	gwactorConfig  *GWActorConfig
	configLock     sync.Mutex
)

// ServerConfig defines fields of the [server] section
type ServerConfig struct {
	ServerID           int
	TCPAddr            string
	WSAddr             string
	KCPAddr            string
	HTTPAddr           string
	LogFile            string
	LogStderr          bool
	LogLevel           string
	GoMaxProcs         int
	SaveInterval       time.Duration
	IdleCheckInterval  time.Duration
	RecycleIdle        time.Duration
	CallTimeout        time.Duration
	TickInterval       time.Duration
	CompressConnection bool
	OpenServerDate     time.Time // day 1 of the server, used by cross day events
}

// StorageConfig defines fields of storage config
type StorageConfig struct {
	Type      string // Type of storage (memory, filesystem, mongodb, redis)
	Directory string // Directory of filesystem storage (filesystem)
	Url       string // Connection URL (mongodb, redis)
	DB        string // Database name (mongodb, redis)
}

// KVDBConfig defines fields of KVDB config
type KVDBConfig struct {
	Type       string // memory, mongodb, redis, redis_cluster
	Url        string // MongoDB, Redis
	DB         string // MongoDB, Redis
	Collection string // MongoDB
	StartNodes NodeSet
}

// GWActorConfig defines the total config file structure
type GWActorConfig struct {
	Server  ServerConfig
	Storage StorageConfig
	KVDB    KVDBConfig
}

// SetConfigFile sets the config file path (gwactor.ini by default)
func SetConfigFile(f string) {
	configLock.Lock()
	configFilePath = f
	gwactorConfig = nil
	configLock.Unlock()
}

// GetConfigDir returns the directory of the config file
func GetConfigDir() string {
	dir, _ := path.Split(configFilePath)
	return dir
}

// GetConfigFilePath returns the config file path
func GetConfigFilePath() string {
	return configFilePath
}

// Get returns the total config
func Get() *GWActorConfig {
	configLock.Lock()
	defer configLock.Unlock()
	if gwactorConfig == nil {
		gwlog.Infof("Using config file: %s", configFilePath)
		gwactorConfig = Parse(configFilePath)
	}
	return gwactorConfig
}

// Reload forces the server to reload the whole config
func Reload() *GWActorConfig {
	configLock.Lock()
	gwactorConfig = nil
	configLock.Unlock()

	return Get()
}

// GetServer returns the server config
func GetServer() *ServerConfig {
	return &Get().Server
}

// GetStorage returns the storage config
func GetStorage() *StorageConfig {
	return &Get().Storage
}

// GetKVDB returns the KVDB config
func GetKVDB() *KVDBConfig {
	return &Get().KVDB
}

// DumpPretty format config to string in pretty format
func DumpPretty(cfg interface{}) string {
	s, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(s)
}

// Parse reads config from a file path or raw ini bytes, panics on invalid config
func Parse(source interface{}) *GWActorConfig {
	var config GWActorConfig
	iniFile, err := ini.Load(source)
	checkConfigError(err, "")

	readServerConfig(iniFile.Section("server"), &config.Server)
	readStorageConfig(iniFile.Section("storage"), &config.Storage)
	readKVDBConfig(iniFile.Section("kvdb"), &config.KVDB)

	for _, sec := range iniFile.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		secName := strings.ToLower(sec.Name())
		if secName != "server" && secName != "storage" && secName != "kvdb" {
			gwlog.Errorf("unknown section: %s", sec.Name())
		}
	}
	return &config
}

func readSeconds(key *ini.Key, def time.Duration) time.Duration {
	return time.Second * time.Duration(key.MustInt(int(def/time.Second)))
}

func readServerConfig(sec *ini.Section, sc *ServerConfig) {
	sc.ServerID = 0
	sc.LogFile = "gwactor.log"
	sc.LogStderr = true
	sc.LogLevel = _DEFAULT_LOG_LEVEL
	sc.SaveInterval = consts.SAVE_INTERVAL
	sc.IdleCheckInterval = consts.IDLE_CHECK_INTERVAL
	sc.RecycleIdle = consts.RECYCLE_IDLE_TIME
	sc.CallTimeout = consts.DEFAULT_CALL_TIMEOUT
	sc.TickInterval = consts.TIMER_TICK_INTERVAL

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		switch name {
		case "server_id":
			sc.ServerID = key.MustInt(sc.ServerID)
		case "tcp_addr":
			sc.TCPAddr = key.MustString(sc.TCPAddr)
		case "ws_addr":
			sc.WSAddr = key.MustString(sc.WSAddr)
		case "kcp_addr":
			sc.KCPAddr = key.MustString(sc.KCPAddr)
		case "http_addr":
			sc.HTTPAddr = key.MustString(sc.HTTPAddr)
		case "log_file":
			sc.LogFile = key.MustString(sc.LogFile)
		case "log_stderr":
			sc.LogStderr = key.MustBool(sc.LogStderr)
		case "log_level":
			sc.LogLevel = key.MustString(sc.LogLevel)
		case "gomaxprocs":
			sc.GoMaxProcs = key.MustInt(sc.GoMaxProcs)
		case "save_interval":
			sc.SaveInterval = readSeconds(key, sc.SaveInterval)
		case "idle_check_interval":
			sc.IdleCheckInterval = readSeconds(key, sc.IdleCheckInterval)
		case "recycle_idle":
			sc.RecycleIdle = readSeconds(key, sc.RecycleIdle)
		case "call_timeout_ms":
			sc.CallTimeout = time.Millisecond * time.Duration(key.MustInt(int(sc.CallTimeout/time.Millisecond)))
		case "tick_interval_ms":
			sc.TickInterval = time.Millisecond * time.Duration(key.MustInt(int(sc.TickInterval/time.Millisecond)))
		case "compress_connection":
			sc.CompressConnection = key.MustBool(sc.CompressConnection)
		case "open_server_date":
			if v := key.MustString(""); v != "" {
				date, err := time.ParseInLocation("2006-01-02", v, time.Local)
				checkConfigError(err, "open_server_date must be YYYY-MM-DD")
				sc.OpenServerDate = date
			}
		default:
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	validateServerConfig(sc)
}

func validateServerConfig(sc *ServerConfig) {
	if sc.ServerID < MinServerID || sc.ServerID > MaxServerID {
		gwlog.Panicf("invalid server_id %d: must be in [%d, %d]", sc.ServerID, MinServerID, MaxServerID)
	}
	if sc.TCPAddr == "" && sc.WSAddr == "" && sc.KCPAddr == "" {
		gwlog.Panicf("at least one of tcp_addr, ws_addr, kcp_addr must be set")
	}
	if sc.TickInterval <= 0 {
		gwlog.Panicf("tick_interval_ms must be positive")
	}
}

func readStorageConfig(sec *ini.Section, config *StorageConfig) {
	// setup default values
	config.Type = "filesystem"
	config.Directory = "_actor_storage"
	config.DB = _DEFAULT_STORAGE_DB
	config.Url = ""

	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			config.Type = key.MustString(config.Type)
		} else if name == "directory" {
			config.Directory = key.MustString(config.Directory)
		} else if name == "url" {
			config.Url = key.MustString(config.Url)
		} else if name == "db" {
			config.DB = key.MustString(config.DB)
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if config.Type == "redis" && config.DB == _DEFAULT_STORAGE_DB {
		config.DB = "0"
	}

	validateStorageConfig(config)
}

func validateStorageConfig(config *StorageConfig) {
	switch config.Type {
	case "memory":
	case "filesystem":
		if config.Directory == "" {
			gwlog.Panicf("directory is not set in %s storage config", config.Type)
		}
	case "mongodb":
		if config.Url == "" {
			gwlog.Panicf("url is not set in %s storage config", config.Type)
		}
		if config.DB == "" {
			gwlog.Panicf("db is not set in %s storage config", config.Type)
		}
	case "redis":
		if config.Url == "" {
			gwlog.Panicf("redis host is not set")
		}
		if _, err := strconv.Atoi(config.DB); err != nil {
			gwlog.Panic(errors.Wrap(err, "redis db must be integer"))
		}
	default:
		gwlog.Panicf("unknown storage type: %s", config.Type)
	}
}

func readKVDBConfig(sec *ini.Section, config *KVDBConfig) {
	config.Type = "memory"
	config.StartNodes = NodeSet{}
	for _, key := range sec.Keys() {
		name := strings.ToLower(key.Name())
		if name == "type" {
			config.Type = key.MustString(config.Type)
		} else if name == "url" {
			config.Url = key.MustString(config.Url)
		} else if name == "db" {
			config.DB = key.MustString(config.DB)
		} else if name == "collection" {
			config.Collection = key.MustString(config.Collection)
		} else if strings.HasPrefix(name, "start_nodes_") {
			config.StartNodes.Add(key.MustString(""))
		} else {
			gwlog.Panicf("section %s has unknown key: %s", sec.Name(), key.Name())
		}
	}

	if config.Type == "redis" && config.DB == "" {
		config.DB = "0"
	}

	validateKVDBConfig(config)
}

func validateKVDBConfig(config *KVDBConfig) {
	switch config.Type {
	case "memory":
	case "mongodb":
		// must set DB and Collection for mongodb
		if config.Url == "" || config.DB == "" || config.Collection == "" {
			gwlog.Panicf("invalid %s KVDB config: %s", config.Type, DumpPretty(config))
		}
	case "redis":
		if config.Url == "" {
			gwlog.Panicf("invalid %s KVDB config: %s", config.Type, DumpPretty(config))
		}
		if _, err := strconv.Atoi(config.DB); err != nil {
			gwlog.Panic(errors.Wrap(err, "redis db must be integer"))
		}
	case "redis_cluster":
		if len(config.StartNodes) == 0 {
			gwlog.Panicf("must have at least 1 start_nodes for [kvdb].redis_cluster")
		}
		for s := range config.StartNodes {
			if s == "" {
				gwlog.Panicf("start_nodes must not be empty")
			}
		}
	default:
		gwlog.Panicf("unknown kvdb type: %s", config.Type)
	}
}

func checkConfigError(err error, msg string) {
	if err != nil {
		if msg == "" {
			msg = err.Error()
		}
		gwlog.Panicf("read config error: %s", msg)
	}
}
