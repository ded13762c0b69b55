// Package config describes the configuration of one task group.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/srand/jolt/datasync/pkg/log"
	"github.com/srand/jolt/datasync/pkg/utils"
)

const (
	DefaultChannel        = 1
	DefaultSleepInterval  = 100 * time.Millisecond
	DefaultReportInterval = 10 * time.Second
	DefaultMaxRetryTimes  = 1
	DefaultRetryInterval  = 10 * time.Second
	DefaultMaxWait        = 60 * time.Second
	DefaultCapacity       = 512
	DefaultMonitorExpire  = 48 * time.Hour
)

type FailoverConfig struct {
	// Attempts per task, including the first one.
	MaxRetryTimes int `mapstructure:"max_retry_times"`
	// Minimum time between a failure and the next attempt. Zero retries
	// immediately; negative selects the default.
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	// Time a failed attempt may take to shut down before the group fails.
	MaxWait time.Duration `mapstructure:"max_wait"`
}

type TransportConfig struct {
	// Records buffered between reader and writer.
	Capacity int `mapstructure:"capacity"`
	// Per task throughput limits, zero for unlimited.
	ByteSpeed   utils.ByteSize `mapstructure:"byte_speed"`
	RecordSpeed int64          `mapstructure:"record_speed"`
}

type MonitorConfig struct {
	utils.GRPCOptions `mapstructure:"grpc"`

	// Tasks without progress for this long are killed.
	Expire time.Duration `mapstructure:"expire"`
	// Optional remote watchdog, e.g. "localhost:9090".
	Address string `mapstructure:"address"`
}

// Configuration of one task group.
type Config struct {
	JobID       int64 `mapstructure:"job_id"`
	TaskGroupID int   `mapstructure:"task_group_id"`

	// Maximum number of concurrently running tasks.
	Channel int `mapstructure:"channel"`

	// Scheduler poll interval.
	SleepInterval time.Duration `mapstructure:"sleep_interval"`

	// Interval between progress reports.
	ReportInterval time.Duration `mapstructure:"report_interval"`

	Failover  FailoverConfig  `mapstructure:"failover"`
	Transport TransportConfig `mapstructure:"transport"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Storage   StorageConfig   `mapstructure:"storage"`

	// Tasks of the group.
	Content []*TaskConfig `mapstructure:"content"`
}

// Reads the group configuration from viper settings.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Failover: FailoverConfig{RetryInterval: DefaultRetryInterval},
	}
	if err := utils.UnmarshalConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrBadRequest, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Channel <= 0 {
		c.Channel = DefaultChannel
	}
	if c.SleepInterval <= 0 {
		c.SleepInterval = DefaultSleepInterval
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = DefaultReportInterval
	}
	if c.Failover.MaxRetryTimes <= 0 {
		c.Failover.MaxRetryTimes = DefaultMaxRetryTimes
	}
	if c.Failover.RetryInterval < 0 {
		c.Failover.RetryInterval = DefaultRetryInterval
	}
	if c.Failover.MaxWait <= 0 {
		c.Failover.MaxWait = DefaultMaxWait
	}
	if c.Transport.Capacity <= 0 {
		c.Transport.Capacity = DefaultCapacity
	}
	if c.Monitor.Expire <= 0 {
		c.Monitor.Expire = DefaultMonitorExpire
	}
	c.Storage.SetDefaults()
}

// Checks group level settings. Task sections are checked when the task is
// started.
func (c *Config) Validate() error {
	if len(c.Content) == 0 {
		return fmt.Errorf("%w: task group %d has no tasks", utils.ErrBadRequest, c.TaskGroupID)
	}

	ids := map[int]bool{}
	for i, task := range c.Content {
		if task == nil {
			return fmt.Errorf("%w: task #%d is empty", utils.ErrBadRequest, i)
		}
		if ids[task.TaskID] {
			return fmt.Errorf("%w: duplicate task id %d", utils.ErrBadRequest, task.TaskID)
		}
		ids[task.TaskID] = true
	}

	if c.Transport.ByteSpeed < 0 || c.Transport.RecordSpeed < 0 {
		return fmt.Errorf("%w: negative transport speed", utils.ErrBadRequest)
	}

	return c.Storage.Validate()
}

func (c *Config) Log() {
	log.Info("Task group configuration:")
	log.Infof("  job_id = %d", c.JobID)
	log.Infof("  task_group_id = %d", c.TaskGroupID)
	log.Infof("  channel = %d", c.Channel)
	log.Infof("  sleep_interval = %v", c.SleepInterval)
	log.Infof("  report_interval = %v", c.ReportInterval)
	log.Infof("  failover.max_retry_times = %d", c.Failover.MaxRetryTimes)
	log.Infof("  failover.retry_interval = %v", c.Failover.RetryInterval)
	log.Infof("  failover.max_wait = %v", c.Failover.MaxWait)
	log.Infof("  transport.capacity = %d", c.Transport.Capacity)
	if c.Transport.ByteSpeed > 0 {
		log.Infof("  transport.byte_speed = %s/s", c.Transport.ByteSpeed)
	}
	if c.Transport.RecordSpeed > 0 {
		log.Infof("  transport.record_speed = %d", c.Transport.RecordSpeed)
	}
	log.Infof("  monitor.expire = %v", c.Monitor.Expire)
	if c.Monitor.Address != "" {
		log.Infof("  monitor.address = %s", c.Monitor.Address)
		c.Monitor.GRPCOptions.Log()
	}
	c.Storage.Log()
	log.Infof("  tasks = %d", len(c.Content))
	for _, task := range c.Content {
		log.Debugf("    %s", task)
	}
}
