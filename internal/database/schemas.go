package database

// schemas maps database names to their embedded schema definitions.
// The ledger schema is the single source of truth for the audit trail tables.
var schemas = map[string]string{
	"ledger": ledgerSchema,
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS transactions (
    id              TEXT PRIMARY KEY,
    agent_id        TEXT NOT NULL,
    amount          TEXT NOT NULL,
    currency        TEXT NOT NULL DEFAULT 'USDC',
    recipient       TEXT NOT NULL,
    purpose         TEXT NOT NULL,
    category        TEXT NOT NULL,
    status          TEXT NOT NULL CHECK (status IN ('pending','approved','executed','failed','cancelled')),
    risk_level      TEXT NOT NULL,
    settlement_hash TEXT,
    actual_revenue  TEXT,
    reasoning_hash  TEXT,
    justification   TEXT,
    signature       TEXT,
    created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_agent_created
    ON transactions (agent_id, created_at);

CREATE INDEX IF NOT EXISTS idx_transactions_category
    ON transactions (category);
`
