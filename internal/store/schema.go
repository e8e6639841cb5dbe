package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_key     TEXT PRIMARY KEY,
    log_path             TEXT,
    byte_offset          INTEGER NOT NULL DEFAULT 0,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS delivered (
    conversation_key     TEXT NOT NULL,
    record_key           TEXT NOT NULL,
    channel              TEXT,
    message_ts           TEXT,
    delivered_at         TEXT NOT NULL,
    PRIMARY KEY (conversation_key, record_key)
);

CREATE TABLE IF NOT EXISTS sink_inputs (
    conversation_key     TEXT NOT NULL,
    record_uuid          TEXT NOT NULL,
    marked_at            TEXT NOT NULL,
    PRIMARY KEY (conversation_key, record_uuid)
);

CREATE TABLE IF NOT EXISTS activity_log (
    conversation_key     TEXT NOT NULL,
    turn_uuid            TEXT NOT NULL,
    entry_key            TEXT NOT NULL,
    kind                 TEXT NOT NULL,
    timestamp_ms         INTEGER NOT NULL,
    duration_ms          INTEGER,
    tool_name            TEXT,
    preview              TEXT,
    full_length          INTEGER,
    detail               TEXT,
    PRIMARY KEY (conversation_key, turn_uuid, entry_key)
);

CREATE INDEX IF NOT EXISTS idx_delivered_conv ON delivered(conversation_key);
CREATE INDEX IF NOT EXISTS idx_activity_conv_ts ON activity_log(conversation_key, timestamp_ms);
`
