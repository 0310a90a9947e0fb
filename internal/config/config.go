package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type JsonUrl struct {
	*url.URL
}

func (j *JsonUrl) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}
	configUrl, err := url.Parse(s)
	j.URL = configUrl
	return err
}

func (j *JsonUrl) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	configUrl, err := url.Parse(s)
	j.URL = configUrl
	return err
}

func (j *JsonUrl) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.URL.String())
}

type JsonDuration struct {
	time.Duration
}

func (j *JsonDuration) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}
	var duration time.Duration
	duration, err = time.ParseDuration(s)
	if err != nil {
		return err
	}
	j.Duration = duration
	return err
}

func (j *JsonDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	j.Duration = duration
	return nil
}

// supported values of Configuration.Database.Driver
const (
	DriverPostgres = "postgres"
	DriverMysql    = "mysql"
	DriverSqlite   = "sqlite"
	DriverMemory   = "memory"
)

// environment variables overriding secrets of the config file
const (
	EnvDbPassword             = "WIKI_DB_PASSWORD"
	EnvJwtSigningKey          = "WIKI_JWT_SIGNING_KEY"
	EnvRedisPassword          = "WIKI_REDIS_PASSWORD"
	EnvBitbucketAccessToken   = "WIKI_BITBUCKET_ACCESS_TOKEN"
	defaultTokenTtl           = 12 * time.Hour
	defaultArticleCacheTtl    = 5 * time.Minute
	defaultConnectionLifetime = time.Hour
)

type Configuration struct {
	Logging struct {
		MaxSize         int           `yaml:"maxSize"`
		MaxBackups      int           `yaml:"maxBackups"`
		MaxAge          int           `yaml:"maxAge"`
		Level           zapcore.Level `yaml:"level"`
		ConsoleLogLevel zapcore.Level `yaml:"consoleLogLevel"`
		File            string        `yaml:"file"`
		HttpAccessFile  string        `yaml:"httpAccessFile"`
		DbLogFile       string        `yaml:"dbLogFile"`
		LogAlerts       bool          `yaml:"logAlerts"`
	} `yaml:"logging"`
	ListeningPort    string `yaml:"listeningPort"`
	ListeningAddress string `yaml:"listeningAddress"`
	Database         struct {
		Driver          string        `yaml:"driver"`
		Host            string        `yaml:"host"`
		Port            uint          `yaml:"port"`
		Username        string        `yaml:"username"`
		Password        string        `yaml:"password"`
		DatabaseName    string        `yaml:"databaseName"`
		MaxIdleConns    int           `yaml:"maxIdleConns"`
		MaxOpenConns    int           `yaml:"maxOpenConns"`
		ConnMaxLifetime *JsonDuration `yaml:"connMaxLifetime"`
	} `yaml:"database"`
	Redis struct {
		Host       string        `yaml:"host"`
		Port       int           `yaml:"port"`
		Password   string        `yaml:"password"`
		DB         int           `yaml:"db"`
		PoolSize   int           `yaml:"poolSize"`
		ArticleTtl *JsonDuration `yaml:"articleTtl"`
	} `yaml:"redis"`
	Auth struct {
		SigningKey string        `yaml:"signingKey"`
		TokenTtl   *JsonDuration `yaml:"tokenTtl"`
	} `yaml:"auth"`
	BitBucket struct {
		Url                *JsonUrl `yaml:"url"`
		User               string   `yaml:"user"`
		Password           string   `yaml:"password"`
		AccessToken        string   `yaml:"accessToken"`
		ProjectName        string   `yaml:"projectName"`
		Repository         string   `yaml:"repository"`
		ImportUsername     string   `yaml:"importUsername"`
		ImportCategorySlug string   `yaml:"importCategorySlug"`
	} `yaml:"bitbucket"`
}

var config *Configuration

func InitConfig() *Configuration {
	configFile := flag.String("config", "config.json", "Path to config file (json or yaml)")
	flag.Parse()
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "\nUsage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		_, _ = fmt.Fprint(os.Stderr, "\n")
	}

	// a missing .env file is fine; the variables may come from the process environment
	_ = godotenv.Load()

	c, err := LoadConfig(*configFile)
	if err != nil {
		flag.Usage()
		panic("Error parsing config file: " + err.Error())
	}

	config = c
	return config
}

// LoadConfig reads the config file at path, applies environment overrides and defaults.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func LoadConfig(path string) (*Configuration, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	c := &Configuration{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(file).Decode(c)
	default:
		err = json.NewDecoder(file).Decode(c)
	}
	if err != nil {
		return nil, err
	}

	applyEnvironment(c)
	applyDefaults(c)

	return c, nil
}

func applyEnvironment(c *Configuration) {
	if v, ok := os.LookupEnv(EnvDbPassword); ok {
		c.Database.Password = v
	}
	if v, ok := os.LookupEnv(EnvJwtSigningKey); ok {
		c.Auth.SigningKey = v
	}
	if v, ok := os.LookupEnv(EnvRedisPassword); ok {
		c.Redis.Password = v
	}
	if v, ok := os.LookupEnv(EnvBitbucketAccessToken); ok {
		c.BitBucket.AccessToken = v
	}
}

func applyDefaults(c *Configuration) {
	if c.Logging.MaxSize <= 0 {
		c.Logging.MaxSize = 500
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge <= 0 {
		c.Logging.MaxAge = 28
	}
	if len(c.Database.Driver) == 0 {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.ConnMaxLifetime == nil {
		c.Database.ConnMaxLifetime = &JsonDuration{defaultConnectionLifetime}
	}
	if c.Redis.ArticleTtl == nil {
		c.Redis.ArticleTtl = &JsonDuration{defaultArticleCacheTtl}
	}
	if c.Auth.TokenTtl == nil {
		c.Auth.TokenTtl = &JsonDuration{defaultTokenTtl}
	}
}

func Config() *Configuration {
	return config
}

func Port() string {
	return config.ListeningPort
}

func Address() string {
	return config.ListeningAddress
}

func DbHost() string {
	return config.Database.Host
}

func DbName() string {
	return config.Database.DatabaseName
}

func DbUser() string {
	return config.Database.Username
}

func DbPassword() string {
	return config.Database.Password
}
