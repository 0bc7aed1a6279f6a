package storage

const schema = `
-- One row per card; scheduling timestamps are unix milliseconds and
-- the review history is stored as a JSON array.
CREATE TABLE IF NOT EXISTS cards (
    id             TEXT PRIMARY KEY,
    text           TEXT NOT NULL,
    answer         TEXT NOT NULL,
    file_path      TEXT NOT NULL DEFAULT '',
    difficulty     REAL NOT NULL,
    stability      REAL NOT NULL,
    retrievability REAL NOT NULL,
    last_review    INTEGER NOT NULL DEFAULT 0,
    next_review    INTEGER NOT NULL DEFAULT 0,
    reviews        INTEGER NOT NULL DEFAULT 0,
    lapses         INTEGER NOT NULL DEFAULT 0,
    review_history TEXT NOT NULL DEFAULT '[]',
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS card_groups (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    filter       TEXT NOT NULL DEFAULT '',
    sort_order   INTEGER NOT NULL DEFAULT 0,
    created_time INTEGER NOT NULL,
    is_reversed  INTEGER NOT NULL DEFAULT 0,
    settings     TEXT
);

CREATE TABLE IF NOT EXISTS daily_stats (
    date              INTEGER PRIMARY KEY,
    new_cards_learned INTEGER NOT NULL DEFAULT 0,
    cards_reviewed    INTEGER NOT NULL DEFAULT 0
);

-- Snapshot metadata: format version, global stats, opaque UI state.
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
