package temporalx

import "time"

type Config struct {
	Address   string `koanf:"address"`
	Namespace string `koanf:"namespace"`
	TaskQueue string `koanf:"task_queue"`

	ClientCertPath string `koanf:"client_cert_path"`
	ClientKeyPath  string `koanf:"client_key_path"`
	ClientCAPath   string `koanf:"client_ca_path"`

	AutoRegisterNamespace bool          `koanf:"auto_register_namespace"`
	RetentionDays         int           `koanf:"retention_days"`
	DialTimeout           time.Duration `koanf:"dial_timeout"`
	DialMaxWait           time.Duration `koanf:"dial_max_wait"`
	Concurrency           int           `koanf:"concurrency"`
}

func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) WithDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = "curriculum"
	}
	if c.TaskQueue == "" {
		c.TaskQueue = "curriculum-generation"
	}
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		c.RetentionDays = 7
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.DialMaxWait < 0 {
		c.DialMaxWait = 0
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	return c
}
