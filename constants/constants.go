package constants

const (
	EnvVarPrefix      = "PMSYNC" // prefix for environment variables read by config.EnvProvider
	EnvVarEnvironment = EnvVarPrefix + "_ENVIRONMENT"

	ConnectionTypeMysql    = "mysql"
	ConnectionTypePostgres = "postgres"
	ConnectionTypeMock     = "mock"

	// Table extraction strategy hints as declared in config.
	SyncStrategyFull        = "full"
	SyncStrategyIncremental = "incremental"
	SyncStrategyBulk        = "bulk"
	SyncStrategyUpsert      = "upsert"

	// Resolved strategy tags reported in metrics and status. The incremental
	// hint resolves to the cursor kind the table actually supports.
	SyncStrategyPkCursor        = "pk_cursor"
	SyncStrategyTimestampCursor = "timestamp_cursor"
	SyncStrategyMultiCursor     = "multi_column_cursor"

	// Importance tiers used by the scheduler, not by the engine.
	TableTierCritical  = "critical"
	TableTierImportant = "important"
	TableTierAudit     = "audit"
	TableTierReference = "reference"

	// MySQL sentinel values that have no PostgreSQL representation.
	// Prefix matches also cover their datetime forms.
	ZeroDate = "0000-00-00"
	MinDate  = "0001-01-01"

	EpochSentinel   = "1970-01-01 00:00:00" // last_modified default meaning "full resync required"
	TimeFormatDb    = "2006-01-02 15:04:05"
	TimeFormatRunId = "20060102T150405" // used for human readable pipeline ids

	// Warehouse-side bookkeeping tables.
	TrackingTableName        = "etl_sync_tracking"
	PipelineMetricsTableName = "etl_pipeline_metrics"
	TableMetricsTableName    = "etl_table_metrics"

	// Copier defaults.
	BatchSizeDefault     = 5000
	SubBatchSizeDefault  = 500
	RetryAttemptsDefault = 3

	// Connection pool defaults.
	ConnectionMaxOpenDefault        = 8
	ConnectionMaxLifetimeSecDefault = 1800

	// Validator defaults.
	SmallTableThresholdDefault = 10000
	CountToleranceDefault      = 0.001 // 0.1% row-count discrepancy allowed on large tables

	// Metrics defaults.
	MetricsRetentionDaysDefault = 30

	// Config file conventions.
	MainDir          = ".pmsync"
	MainFileFullName = "config.yaml"

	VarcharLenDefault       = 255      // character types with no declared length
	NumericPrecisionDefault = "(10,2)" // decimal/numeric with no declared precision
)
