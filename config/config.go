/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5002"

	// CutoffLayout is the layout of Reconciliation.CutoffDate.
	CutoffLayout = "2006-01-02"

	defaultOmieBaseURL     = "https://app.omie.com.br/api/v1"
	defaultAcquirerBaseURL = "https://api.pagar.me/1"
	defaultTolerance       = 0.0005
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"CONCILIATOR_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"CONCILIATOR_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"CONCILIATOR_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns             string        `json:"dns" envconfig:"CONCILIATOR_DATA_SOURCE_DNS"`
	MaxOpenConns    int           `json:"max_open_conns" envconfig:"CONCILIATOR_DATA_SOURCE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `json:"max_idle_conns" envconfig:"CONCILIATOR_DATA_SOURCE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" envconfig:"CONCILIATOR_DATA_SOURCE_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" envconfig:"CONCILIATOR_DATA_SOURCE_CONN_MAX_IDLE_TIME"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"CONCILIATOR_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"CONCILIATOR_REDIS_SKIP_TLS_VERIFY"`
}

// OmieConfig holds the ERP credentials and the knobs bounding how hard we hit it.
type OmieConfig struct {
	BaseURL           string  `json:"base_url" envconfig:"CONCILIATOR_OMIE_BASE_URL"`
	AppKey            string  `json:"app_key" envconfig:"CONCILIATOR_OMIE_APP_KEY"`
	AppSecret         string  `json:"app_secret" envconfig:"CONCILIATOR_OMIE_APP_SECRET"`
	PageSize          int     `json:"page_size" envconfig:"CONCILIATOR_OMIE_PAGE_SIZE"`
	Workers           int     `json:"workers" envconfig:"CONCILIATOR_OMIE_WORKERS"`
	RequestsPerSecond float64 `json:"requests_per_second" envconfig:"CONCILIATOR_OMIE_RPS"`
}

type AcquirerConfig struct {
	Name    string `json:"name" envconfig:"CONCILIATOR_ACQUIRER_NAME"`
	BaseURL string `json:"base_url" envconfig:"CONCILIATOR_ACQUIRER_BASE_URL"`
	ApiKey  string `json:"api_key" envconfig:"CONCILIATOR_ACQUIRER_API_KEY"`
	Workers int    `json:"workers" envconfig:"CONCILIATOR_ACQUIRER_WORKERS"`
}

// HTTPConfig is the connect/read timeout pair applied to every outbound call.
type HTTPConfig struct {
	ConnectTimeoutSec int `json:"connect_timeout_sec" envconfig:"CONCILIATOR_HTTP_CONNECT_TIMEOUT_SEC"`
	ReadTimeoutSec    int `json:"read_timeout_sec" envconfig:"CONCILIATOR_HTTP_READ_TIMEOUT_SEC"`
}

type ReconciliationConfig struct {
	CutoffDate             string    `json:"cutoff_date" envconfig:"CONCILIATOR_CUTOFF_DATE"`
	Cutoff                 time.Time `json:"-" ignored:"true"`
	Tolerance              float64   `json:"tolerance" envconfig:"CONCILIATOR_TOLERANCE"`
	InstallmentSpacingDays int       `json:"installment_spacing_days" envconfig:"CONCILIATOR_INSTALLMENT_SPACING_DAYS"`
	FeeCategory            string    `json:"fee_category" envconfig:"CONCILIATOR_FEE_CATEGORY"`
	FeeDocumentType        string    `json:"fee_document_type" envconfig:"CONCILIATOR_FEE_DOCUMENT_TYPE"`
	FeeProject             int64     `json:"fee_project" envconfig:"CONCILIATOR_FEE_PROJECT"`
	FeeDepartment          string    `json:"fee_department" envconfig:"CONCILIATOR_FEE_DEPARTMENT"`
	TransferCategory       string    `json:"transfer_category" envconfig:"CONCILIATOR_TRANSFER_CATEGORY"`
	PropagationDelayMillis int       `json:"propagation_delay_millis" envconfig:"CONCILIATOR_PROPAGATION_DELAY_MILLIS"`
}

// JobsConfig configures the asynq queue and the cron specs of the periodic jobs.
// An empty schedule disables the periodic registration of that job.
type JobsConfig struct {
	Queue                  string `json:"queue" envconfig:"CONCILIATOR_JOBS_QUEUE"`
	IngestionSchedule      string `json:"ingestion_schedule" envconfig:"CONCILIATOR_INGESTION_SCHEDULE"`
	ReconciliationSchedule string `json:"reconciliation_schedule" envconfig:"CONCILIATOR_RECONCILIATION_SCHEDULE"`
	OmieAccountsSchedule   string `json:"omie_accounts_schedule" envconfig:"CONCILIATOR_OMIE_ACCOUNTS_SCHEDULE"`
	MaintenanceSchedule    string `json:"maintenance_schedule" envconfig:"CONCILIATOR_MAINTENANCE_SCHEDULE"`
	IngestionLookbackDays  int    `json:"ingestion_lookback_days" envconfig:"CONCILIATOR_INGESTION_LOOKBACK_DAYS"`
	LockTimeoutSec         int    `json:"lock_timeout_sec" envconfig:"CONCILIATOR_JOBS_LOCK_TIMEOUT_SEC"`
	Concurrency            int    `json:"concurrency" envconfig:"CONCILIATOR_JOBS_CONCURRENCY"`
	MonitoringPort         string `json:"monitoring_port" envconfig:"CONCILIATOR_JOBS_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"CONCILIATOR_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"CONCILIATOR_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"CONCILIATOR_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"CONCILIATOR_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string               `json:"project_name" envconfig:"CONCILIATOR_PROJECT_NAME"`
	EnableTelemetry bool                 `json:"enable_telemetry" envconfig:"CONCILIATOR_ENABLE_TELEMETRY"`
	Server          ServerConfig         `json:"server"`
	DataSource      DataSourceConfig     `json:"data_source"`
	Redis           RedisConfig          `json:"redis"`
	Omie            OmieConfig           `json:"omie"`
	Acquirer        AcquirerConfig       `json:"acquirer"`
	HTTP            HTTPConfig           `json:"http"`
	Reconciliation  ReconciliationConfig `json:"reconciliation"`
	Jobs            JobsConfig           `json:"jobs"`
	Notification    Notification         `json:"notification"`
	RateLimit       RateLimitConfig      `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("conciliator", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called conciliator.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Conciliator"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Omie.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Omie.BaseURL), "/")
	cnf.Acquirer.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Acquirer.BaseURL), "/")

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.DataSource.MaxOpenConns <= 0 {
		cnf.DataSource.MaxOpenConns = 25
	}
	if cnf.DataSource.MaxIdleConns <= 0 {
		cnf.DataSource.MaxIdleConns = 10
	}
	if cnf.DataSource.ConnMaxLifetime <= 0 {
		cnf.DataSource.ConnMaxLifetime = 30 * time.Minute
	}
	if cnf.DataSource.ConnMaxIdleTime <= 0 {
		cnf.DataSource.ConnMaxIdleTime = 5 * time.Minute
	}

	cnf.addOutboundDefaults()

	if err := cnf.addReconciliationDefaults(); err != nil {
		return err
	}

	if cnf.Jobs.Queue == "" {
		cnf.Jobs.Queue = "conciliator_jobs"
	}
	if cnf.Jobs.LockTimeoutSec <= 0 {
		cnf.Jobs.LockTimeoutSec = 1800
	}
	if cnf.Jobs.Concurrency <= 0 {
		cnf.Jobs.Concurrency = 2
	}
	if cnf.Jobs.IngestionLookbackDays < 0 {
		return errors.New("ingestion lookback days cannot be negative")
	}
	cnf.Jobs.MonitoringPort = strings.TrimSpace(cnf.Jobs.MonitoringPort)

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// addOutboundDefaults fills the ERP, acquirer and HTTP settings. Worker pools are clamped
// to 3..10 since both upstreams throttle aggressively.
func (cnf *Configuration) addOutboundDefaults() {
	if cnf.Omie.BaseURL == "" {
		cnf.Omie.BaseURL = defaultOmieBaseURL
	}
	if cnf.Omie.PageSize <= 0 {
		cnf.Omie.PageSize = 20
	}
	cnf.Omie.Workers = clampWorkers(cnf.Omie.Workers, 10)

	if cnf.Acquirer.Name == "" {
		cnf.Acquirer.Name = "pagarme"
	}
	if cnf.Acquirer.BaseURL == "" {
		cnf.Acquirer.BaseURL = defaultAcquirerBaseURL
	}
	cnf.Acquirer.Workers = clampWorkers(cnf.Acquirer.Workers, 3)

	if cnf.HTTP.ConnectTimeoutSec <= 0 {
		cnf.HTTP.ConnectTimeoutSec = 5
	}
	if cnf.HTTP.ReadTimeoutSec <= 0 {
		cnf.HTTP.ReadTimeoutSec = 15
	}
}

func (cnf *Configuration) addReconciliationDefaults() error {
	rc := &cnf.Reconciliation
	if rc.Tolerance <= 0 {
		rc.Tolerance = defaultTolerance
	}
	if rc.InstallmentSpacingDays < 0 {
		return errors.New("installment spacing days cannot be negative")
	}
	if rc.FeeDocumentType == "" {
		rc.FeeDocumentType = "TAX"
	}

	rc.CutoffDate = strings.TrimSpace(rc.CutoffDate)
	if rc.CutoffDate == "" {
		log.Println("Warning: Reconciliation cutoff date not specified. Every due transaction is eligible.")
		rc.Cutoff = time.Time{}
		return nil
	}
	cutoff, err := time.Parse(CutoffLayout, rc.CutoffDate)
	if err != nil {
		return fmt.Errorf("invalid reconciliation cutoff date %q: %w", rc.CutoffDate, err)
	}
	rc.Cutoff = cutoff
	return nil
}

func clampWorkers(n, def int) int {
	if n <= 0 {
		return def
	}
	if n < 3 {
		return 3
	}
	if n > 10 {
		return 10
	}
	return n
}

// ConnectTimeout returns the dial timeout for outbound calls.
func (h HTTPConfig) ConnectTimeout() time.Duration {
	return time.Duration(h.ConnectTimeoutSec) * time.Second
}

// ReadTimeout returns the response timeout for outbound calls.
func (h HTTPConfig) ReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeoutSec) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
