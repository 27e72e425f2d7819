package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var GlobalConfig *Config

// ErrInvalidConfig is returned when a configuration cannot be made usable
var ErrInvalidConfig = errors.New("invalid configuration")

// Config global configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Redis      RedisConfig      `yaml:"redis"`
	MySQL      MySQLConfig      `yaml:"mysql"`
	Logger     LoggerConfig     `yaml:"logger"`
	AWS        AWSConfig        `yaml:"aws"`
	Queue      QueueConfig      `yaml:"queue"`
	Blob       BlobConfig       `yaml:"blob"`
	Fleet      FleetConfig      `yaml:"fleet"`
	AutoScaler AutoScalerConfig `yaml:"autoscaler"`
	Worker     WorkerConfig     `yaml:"worker"`
	Classifier ClassifierConfig `yaml:"classifier"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Port   int    `yaml:"port"`
	Mode   string `yaml:"mode"`    // debug, release
	APIKey string `yaml:"api_key"` // API key for submissions (optional, if empty, auth is disabled)
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"` // 0 keeps the go-redis default
}

// Enabled reports whether a redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MySQLConfig MySQL configuration (scaling event history, optional)
type MySQLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DSN builds the go-sql-driver DSN
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// LoggerConfig logger configuration
type LoggerConfig struct {
	Level  string           `yaml:"level"`  // debug, info, warn, error
	Output string           `yaml:"output"` // console, file, both
	File   LoggerFileConfig `yaml:"file"`
}

// LoggerFileConfig logger file configuration
type LoggerFileConfig struct {
	Path string `yaml:"path"`
}

// AWSConfig AWS SDK configuration shared by sqs, s3 and ec2
type AWSConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"` // Custom endpoint (localstack etc.)
}

// QueueConfig work queue configuration
type QueueConfig struct {
	Provider          string        `yaml:"provider"` // redis, sqs, memory
	RequestQueue      string        `yaml:"request_queue"`
	ResponseQueue     string        `yaml:"response_queue"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"` // Lease length for redis/memory queues
}

// BlobConfig blob store configuration
type BlobConfig struct {
	Provider     string `yaml:"provider"` // s3, redis, memory
	InputBucket  string `yaml:"input_bucket"`
	OutputBucket string `yaml:"output_bucket"`
}

// FleetConfig instance fleet configuration
type FleetConfig struct {
	Provider   string            `yaml:"provider"`    // ec2, k8s, docker, memory
	NamePrefix string            `yaml:"name_prefix"` // Units are named <prefix>-<n>
	EC2        EC2FleetConfig    `yaml:"ec2"`
	K8s        K8sFleetConfig    `yaml:"k8s"`
	Docker     DockerFleetConfig `yaml:"docker"`
}

// EC2FleetConfig launch template for EC2 units
type EC2FleetConfig struct {
	AMI              string   `yaml:"ami"`
	InstanceType     string   `yaml:"instance_type"`
	KeyName          string   `yaml:"key_name"`
	SecurityGroupIDs []string `yaml:"security_group_ids"`
	SubnetID         string   `yaml:"subnet_id"`
	InstanceProfile  string   `yaml:"instance_profile"`
	UserData         string   `yaml:"user_data"`
}

// K8sFleetConfig launch template for pod units
type K8sFleetConfig struct {
	Namespace   string            `yaml:"namespace"`
	Kubeconfig  string            `yaml:"kubeconfig"`   // Empty means in-cluster
	PodTemplate string            `yaml:"pod_template"` // Optional YAML pod template file
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"command"`
	Env         map[string]string `yaml:"env"`
}

// DockerFleetConfig launch template for container units
type DockerFleetConfig struct {
	Image   string            `yaml:"image"`
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env"`
	Network string            `yaml:"network"`
}

// AutoScalerConfig fleet controller configuration
type AutoScalerConfig struct {
	MinInstances        int           `yaml:"min_instances"`
	MaxInstances        int           `yaml:"max_instances"`
	MessagesPerInstance int           `yaml:"messages_per_instance"`
	LaunchRateLimit     int           `yaml:"launch_rate_limit"` // Max launches per tick
	Interval            time.Duration `yaml:"interval"`          // Control loop tick interval
	MinSleep            time.Duration `yaml:"min_sleep"`         // Floor for the post-tick sleep
	SampleBatchSize     int           `yaml:"sample_batch_size"` // Max messages per depth sample
	SampleWait          time.Duration `yaml:"sample_wait"`       // Long-poll wait for the depth sample
	ReleaseSampled      *bool         `yaml:"release_sampled"`   // Release leases taken by the sample
	LeaderLock          bool          `yaml:"leader_lock"`       // Guard ticks with a redis lock
}

// WorkerConfig worker configuration
type WorkerConfig struct {
	MinRuntime     time.Duration `yaml:"min_runtime"`      // Minimum lifetime before self-termination
	PollWait       time.Duration `yaml:"poll_wait"`        // Long-poll wait per receive
	PollErrorDelay time.Duration `yaml:"poll_error_delay"` // Pause after a failed receive
	UnitID         string        `yaml:"unit_id"`          // Overrides self identity discovery
	PublishRetries int           `yaml:"publish_retries"`  // Attempts per result write
}

// ClassifierConfig external inference routine configuration
type ClassifierConfig struct {
	Interpreter string        `yaml:"interpreter"` // e.g. python3, empty to exec the script directly
	Script      string        `yaml:"script"`
	ScratchDir  string        `yaml:"scratch_dir"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Init initializes configuration from path, falling back to CONFIG_PATH
func Init(path ...string) error {
	configPath := ""
	if len(path) > 0 {
		configPath = path[0]
	}
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := Load(configPath)
	if err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

// Load reads, defaults and validates a configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates
func Parse(data []byte) (*Config, error) {
	// Pre-filled so omitted keys keep their defaults while explicit zeros survive
	cfg := Config{
		AutoScaler: DefaultAutoScalerConfig(),
		Worker:     DefaultWorkerConfig(),
		Classifier: DefaultClassifierConfig(),
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	validateAndApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations defaults cannot repair
func (c *Config) Validate() error {
	as := c.AutoScaler
	if as.MinInstances > as.MaxInstances {
		return fmt.Errorf("%w: autoscaler.min_instances (%d) > autoscaler.max_instances (%d)",
			ErrInvalidConfig, as.MinInstances, as.MaxInstances)
	}
	if c.Queue.RequestQueue == c.Queue.ResponseQueue {
		return fmt.Errorf("%w: request and response queues must differ", ErrInvalidConfig)
	}
	return nil
}

// ReleaseSampledLeases reports whether the controller returns sampled messages
func (c AutoScalerConfig) ReleaseSampledLeases() bool {
	return c.ReleaseSampled == nil || *c.ReleaseSampled
}

// DefaultAutoScalerConfig returns the controller defaults
func DefaultAutoScalerConfig() AutoScalerConfig {
	return AutoScalerConfig{
		MinInstances:        5,
		MaxInstances:        15,
		MessagesPerInstance: 5,
		LaunchRateLimit:     5,
		Interval:            5 * time.Second,
		MinSleep:            time.Second,
		SampleBatchSize:     10,
		SampleWait:          20 * time.Second,
	}
}

// DefaultWorkerConfig returns the worker defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MinRuntime:     300 * time.Second,
		PollWait:       20 * time.Second,
		PollErrorDelay: time.Second,
		PublishRetries: 3,
	}
}

// DefaultClassifierConfig returns the classifier defaults
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Interpreter: "python3",
		Script:      "/home/ec2-user/model/face_recognition.py",
		ScratchDir:  os.TempDir(),
		Timeout:     60 * time.Second,
	}
}

// validateAndApplyDefaults replaces missing or out-of-range values with defaults
func validateAndApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Output == "" {
		cfg.Logger.Output = "console"
	}
	if cfg.MySQL.Port <= 0 {
		cfg.MySQL.Port = 3306
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}

	if cfg.Queue.Provider == "" {
		cfg.Queue.Provider = "redis"
	}
	if cfg.Queue.RequestQueue == "" {
		cfg.Queue.RequestQueue = "req-queue"
	}
	if cfg.Queue.ResponseQueue == "" {
		cfg.Queue.ResponseQueue = "resp-queue"
	}
	if cfg.Queue.VisibilityTimeout <= 0 {
		cfg.Queue.VisibilityTimeout = 30 * time.Second
	}

	if cfg.Blob.Provider == "" {
		cfg.Blob.Provider = "redis"
	}
	if cfg.Blob.InputBucket == "" {
		cfg.Blob.InputBucket = "in-bucket"
	}
	if cfg.Blob.OutputBucket == "" {
		cfg.Blob.OutputBucket = "out-bucket"
	}

	if cfg.Fleet.Provider == "" {
		cfg.Fleet.Provider = "ec2"
	}
	if cfg.Fleet.NamePrefix == "" {
		cfg.Fleet.NamePrefix = "worker"
	}
	if cfg.Fleet.EC2.InstanceType == "" {
		cfg.Fleet.EC2.InstanceType = "t2.micro"
	}
	if cfg.Fleet.K8s.Namespace == "" {
		cfg.Fleet.K8s.Namespace = "default"
	}

	asDefaults := DefaultAutoScalerConfig()
	as := &cfg.AutoScaler
	if as.MinInstances < 0 {
		as.MinInstances = asDefaults.MinInstances
	}
	if as.MaxInstances <= 0 {
		as.MaxInstances = asDefaults.MaxInstances
	}
	if as.MessagesPerInstance <= 0 {
		as.MessagesPerInstance = asDefaults.MessagesPerInstance
	}
	if as.LaunchRateLimit <= 0 {
		as.LaunchRateLimit = asDefaults.LaunchRateLimit
	}
	if as.Interval <= 0 {
		as.Interval = asDefaults.Interval
	}
	if as.MinSleep <= 0 {
		as.MinSleep = asDefaults.MinSleep
	}
	if as.SampleBatchSize <= 0 {
		as.SampleBatchSize = asDefaults.SampleBatchSize
	}
	if as.SampleWait < 0 {
		as.SampleWait = asDefaults.SampleWait
	}

	wDefaults := DefaultWorkerConfig()
	w := &cfg.Worker
	if w.MinRuntime <= 0 {
		w.MinRuntime = wDefaults.MinRuntime
	}
	if w.PollWait <= 0 {
		w.PollWait = wDefaults.PollWait
	}
	if w.PollErrorDelay <= 0 {
		w.PollErrorDelay = wDefaults.PollErrorDelay
	}
	if w.PublishRetries <= 0 {
		w.PublishRetries = wDefaults.PublishRetries
	}

	cDefaults := DefaultClassifierConfig()
	c := &cfg.Classifier
	if c.Script == "" {
		c.Interpreter = cDefaults.Interpreter
		c.Script = cDefaults.Script
	}
	if c.ScratchDir == "" {
		c.ScratchDir = cDefaults.ScratchDir
	}
	if c.Timeout <= 0 {
		c.Timeout = cDefaults.Timeout
	}
}
