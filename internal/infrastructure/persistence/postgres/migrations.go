package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_actors",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_content",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_edges",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ACTORS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Local copy of identity profiles, used by profile joins.
CREATE TABLE IF NOT EXISTS actors (
    id TEXT PRIMARY KEY,
    seq BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE,
    handle VARCHAR(32) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    avatar_url TEXT NOT NULL DEFAULT '',
    cover_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS actors;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CONTENT, PLAYLISTS, COMMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS content_items (
    id TEXT PRIMARY KEY,
    seq BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE,
    owner_id TEXT NOT NULL,
    kind VARCHAR(10) NOT NULL,
    title VARCHAR(200) NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    media_url TEXT NOT NULL DEFAULT '',
    thumbnail_url TEXT NOT NULL DEFAULT '',
    duration DOUBLE PRECISION NOT NULL DEFAULT 0,
    published BOOLEAN NOT NULL DEFAULT FALSE,
    views BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_kind CHECK (kind IN ('video', 'post')),
    CONSTRAINT valid_views CHECK (views >= 0),
    CONSTRAINT owner_required CHECK (owner_id <> '')
);

CREATE INDEX IF NOT EXISTS idx_content_owner ON content_items(owner_id, seq);
CREATE INDEX IF NOT EXISTS idx_content_feed ON content_items(created_at DESC, seq DESC) WHERE published;

CREATE TABLE IF NOT EXISTS playlists (
    id TEXT PRIMARY KEY,
    seq BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE,
    owner_id TEXT NOT NULL,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    items TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner_id, seq);
CREATE INDEX IF NOT EXISTS idx_playlists_items ON playlists USING GIN (items);

CREATE TABLE IF NOT EXISTS comments (
    id TEXT PRIMARY KEY,
    seq BIGINT GENERATED ALWAYS AS IDENTITY UNIQUE,
    owner_id TEXT NOT NULL,
    content_id TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_comments_content ON comments(content_id, seq);
CREATE INDEX IF NOT EXISTS idx_comments_owner ON comments(owner_id);
`

const migration002Down = `
DROP TABLE IF EXISTS comments;
DROP TABLE IF EXISTS playlists;
DROP TABLE IF EXISTS content_items;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: EDGES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- FOLLOW and LIKE relations. At most one edge per (source, target, kind).
CREATE TABLE IF NOT EXISTS edges (
    seq BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    kind VARCHAR(10) NOT NULL,
    target_type VARCHAR(10) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT edges_triple UNIQUE (source_id, target_id, kind),
    CONSTRAINT valid_edge_kind CHECK (kind IN ('FOLLOW', 'LIKE')),
    CONSTRAINT valid_target_type CHECK (target_type IN ('actor', 'content', 'comment')),
    CONSTRAINT no_self_follow CHECK (kind <> 'FOLLOW' OR source_id <> target_id)
);

CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, kind);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, kind, seq);
`

const migration003Down = `
DROP TABLE IF EXISTS edges;
`
