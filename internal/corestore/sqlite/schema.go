package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS trees (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    root_id       TEXT NOT NULL,
    trash_root_id TEXT NOT NULL,
    super_root_id TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS nodes (
    id                 TEXT NOT NULL,
    tree_id            TEXT NOT NULL REFERENCES trees(id) ON DELETE CASCADE,
    parent_id          TEXT NOT NULL,
    node_type          TEXT NOT NULL,
    name               TEXT NOT NULL CHECK(length(name) <= 255),
    description        TEXT NOT NULL DEFAULT '',
    has_children       INTEGER NOT NULL DEFAULT 0,
    is_draft           INTEGER NOT NULL DEFAULT 0,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    version            INTEGER NOT NULL DEFAULT 1,
    is_removed         INTEGER NOT NULL DEFAULT 0,
    removed_at         DATETIME,
    original_parent_id TEXT,
    original_name      TEXT,
    PRIMARY KEY (tree_id, id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(tree_id, parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_removed ON nodes(tree_id, is_removed);
CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_id ON nodes(id);

-- Peer entities: exactly one row per node.
CREATE TABLE IF NOT EXISTS peer_entities (
    node_id    TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE,
    data       TEXT NOT NULL DEFAULT '{}',
    version    INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Group entities: ordered, zero-or-more per node.
CREATE TABLE IF NOT EXISTS group_entities (
    id         TEXT PRIMARY KEY,
    node_id    TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
    sort_order INTEGER NOT NULL DEFAULT 0,
    data       TEXT NOT NULL DEFAULT '{}',
    version    INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_group_entities_node ON group_entities(node_id, sort_order);

-- Relational entities: shared, reference-counted via relational_refs.
CREATE TABLE IF NOT EXISTS relational_entities (
    id         TEXT PRIMARY KEY,
    data       TEXT NOT NULL DEFAULT '{}',
    version    INTEGER NOT NULL DEFAULT 1,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS relational_refs (
    entity_id TEXT NOT NULL REFERENCES relational_entities(id) ON DELETE CASCADE,
    node_id   TEXT NOT NULL,
    PRIMARY KEY (entity_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_relational_refs_node ON relational_refs(node_id);

-- Hook event log table (§4.7). internal/lifecycle keeps its bounded
-- 1000-entry log in memory and does not write to this table.
CREATE TABLE IF NOT EXISTS hook_events (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    node_id    TEXT NOT NULL,
    hook       TEXT NOT NULL,
    ok         INTEGER NOT NULL,
    detail     TEXT NOT NULL DEFAULT '',
    occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS seq_counter (
    id   INTEGER PRIMARY KEY CHECK (id = 1),
    next INTEGER NOT NULL
);

INSERT OR IGNORE INTO seq_counter (id, next) VALUES (1, 1);
`
