package repositories

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	id                UUID PRIMARY KEY,
	email             TEXT NOT NULL UNIQUE,
	password_hash     TEXT NULL,
	failed_attempts   INTEGER NOT NULL DEFAULT 0 CHECK (failed_attempts >= 0),
	last_failed_login TIMESTAMPTZ NULL,
	is_locked         BOOLEAN NOT NULL DEFAULT FALSE,
	lock_until        TIMESTAMPTZ NULL,
	is_verified       BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT credentials_lock_until_set CHECK (NOT is_locked OR lock_until IS NOT NULL)
);

CREATE TABLE IF NOT EXISTS verification_pins (
	email                 TEXT PRIMARY KEY REFERENCES credentials(email) ON DELETE CASCADE,
	pin                   TEXT NOT NULL,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	is_valid              BOOLEAN NOT NULL DEFAULT TRUE,
	can_change            BOOLEAN NOT NULL DEFAULT FALSE,
	for_password_recovery BOOLEAN NOT NULL DEFAULT FALSE,
	incorrect_attempts    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS verification_pins_created_at_idx ON verification_pins (created_at);
`
