package config

import (
	"os"
	"path"
	"strconv"

	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	DemoData bool   `yaml:"demo_data" json:"demo_data"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Secret string `yaml:"secret" json:"secret"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system" json:"system"`
	Web      WebConfig `yaml:"web" json:"web"`
	Database DBConfig  `yaml:"database" json:"database"`
	Logger   LogConfig `yaml:"logger" json:"logger"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) initDirs() {
	_ = os.MkdirAll(path.Join(c.System.Workdir, "logs"), 0755)
	_ = os.MkdirAll(path.Join(c.System.Workdir, "data"), 0755)
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "orderdesk",
		Location: "Asia/Shanghai",
		Workdir:  "/var/orderdesk",
		DemoData: false,
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   1816,
		Secret: "9b6de5cc-orderdesk-secret-b9a36ce2",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "orderdesk",
		User:     "postgres",
		Passwd:   "",
		MaxConn:  100,
		IdleConn: 10,
		Debug:    false,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/orderdesk/orderdesk.log",
	},
}

func setEnvValue(name string, val *string) {
	if evalue := os.Getenv(name); evalue != "" {
		*val = evalue
	}
}

func setEnvInt(name string, val *int) {
	if evalue := os.Getenv(name); evalue != "" {
		if ival, err := strconv.Atoi(evalue); err == nil {
			*val = ival
		}
	}
}

func setEnvBool(name string, val *bool) {
	if evalue := os.Getenv(name); evalue != "" {
		if bval, err := strconv.ParseBool(evalue); err == nil {
			*val = bval
		}
	}
}

// LoadConfig reads the yaml configuration file and applies
// ORDERDESK_* environment overrides on top of it. A missing file
// yields the built-in defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvValue("ORDERDESK_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("ORDERDESK_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBool("ORDERDESK_SYSTEM_DEBUG", &cfg.System.Debug)
	setEnvBool("ORDERDESK_SYSTEM_DEMO_DATA", &cfg.System.DemoData)

	setEnvValue("ORDERDESK_WEB_HOST", &cfg.Web.Host)
	setEnvInt("ORDERDESK_WEB_PORT", &cfg.Web.Port)
	setEnvValue("ORDERDESK_WEB_SECRET", &cfg.Web.Secret)

	setEnvValue("ORDERDESK_DB_TYPE", &cfg.Database.Type)
	setEnvValue("ORDERDESK_DB_HOST", &cfg.Database.Host)
	setEnvInt("ORDERDESK_DB_PORT", &cfg.Database.Port)
	setEnvValue("ORDERDESK_DB_NAME", &cfg.Database.Name)
	setEnvValue("ORDERDESK_DB_USER", &cfg.Database.User)
	setEnvValue("ORDERDESK_DB_PASSWD", &cfg.Database.Passwd)

	setEnvValue("ORDERDESK_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBool("ORDERDESK_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)
	setEnvValue("ORDERDESK_LOGGER_FILENAME", &cfg.Logger.Filename)

	cfg.initDirs()
	return cfg
}
