package config

// EnvPrefix is passed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = "LEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv  = "LEDGER_APP_ENV"
	EnvOpsPort = "LEDGER_OPS_PORT"

	EnvDBDSN  = "LEDGER_DB_DSN"
	EnvDBHost = "LEDGER_DB_HOST"
	EnvDBUser = "LEDGER_DB_USER"
	EnvDBName = "LEDGER_DB_NAME"

	EnvRedisURL = "LEDGER_REDIS_URL"

	EnvGCPProjectID          = "LEDGER_GCP_PROJECT_ID"
	EnvPubSubAuditTopic      = "LEDGER_PUBSUB_AUDIT_TOPIC"
	EnvPubSubSettlementSub   = "LEDGER_PUBSUB_SETTLEMENT_SUBSCRIPTION"
	EnvPubSubSettlementTopic = "LEDGER_PUBSUB_SETTLEMENT_TOPIC"

	EnvLedgerDefaultPage    = "LEDGER_DEFAULT_PAGE_SIZE"
	EnvLedgerMaxPage        = "LEDGER_MAX_PAGE_SIZE"
	EnvLedgerMinPayout      = "LEDGER_MIN_PAYOUT_CENTS"
	EnvLedgerTxTimeout      = "LEDGER_TX_TIMEOUT"
	EnvLedgerHealthWarning  = "LEDGER_HEALTH_WARNING_RATIO"
	EnvLedgerHealthCritical = "LEDGER_HEALTH_CRITICAL_RATIO"
	EnvLedgerCurrency       = "LEDGER_CURRENCY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
