package db

type migration struct {
	name  string
	stmts []string
}

// Statements stay within the SQL both SQLite and PostgreSQL accept.
var migrations = []migration{
	{
		name: "create users table",
		stmts: []string{`
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL,
				first_name TEXT NOT NULL,
				last_name TEXT NOT NULL,
				gloop_count BIGINT NOT NULL DEFAULT 0,
				daily_gloop_count BIGINT NOT NULL DEFAULT 0,
				last_daily_reset TIMESTAMP,
				gloop_boosts BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
			`CREATE INDEX IF NOT EXISTS idx_users_gloop_count ON users(gloop_count)`,
		},
	},
	{
		name: "create gloops table",
		stmts: []string{`
			CREATE TABLE IF NOT EXISTS gloops (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				gloop_count BIGINT NOT NULL DEFAULT 1,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_gloops_user ON gloops(user_id, created_at)`,
		},
	},
	{
		name: "create invite links table",
		stmts: []string{`
			CREATE TABLE IF NOT EXISTS invite_links (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				code TEXT NOT NULL,
				uses INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_invite_links_code ON invite_links(code)`,
		},
	},
	{
		name: "create global chat table",
		stmts: []string{`
			CREATE TABLE IF NOT EXISTS global_chat (
				id TEXT PRIMARY KEY,
				display_name TEXT NOT NULL,
				message TEXT NOT NULL,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_global_chat_created ON global_chat(created_at)`,
		},
	},
	{
		// Rows created before this migration keep NULLs and are treated as
		// legacy records whose boost usage lives in the local store.
		name: "add daily boost usage tracking",
		stmts: []string{
			`ALTER TABLE users ADD COLUMN daily_boosts_used INTEGER`,
			`ALTER TABLE users ADD COLUMN last_boost_reset TIMESTAMP`,
		},
	},
}
