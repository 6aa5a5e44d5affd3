package store

// dialect holds the statements that differ between sqlite and Postgres.
type dialect struct {
	driver string
	insert string
	get    string
	search string
	list   string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	insert: `INSERT INTO namespaces (purl, data) VALUES (?, ?) ON CONFLICT(purl) DO NOTHING`,
	get:    `SELECT purl, data, created_at FROM namespaces WHERE purl = ?`,
	// instr is case-sensitive, unlike LIKE.
	search: `SELECT purl, data, created_at FROM namespaces WHERE instr(data, ?) > 0 ORDER BY purl`,
	list:   `SELECT purl, data, created_at FROM namespaces ORDER BY purl`,
}

var postgresDialect = dialect{
	driver: "pgx",
	insert: `INSERT INTO namespaces (purl, data) VALUES ($1, $2) ON CONFLICT (purl) DO NOTHING`,
	get:    `SELECT purl, data, created_at FROM namespaces WHERE purl = $1`,
	search: `SELECT purl, data, created_at FROM namespaces WHERE strpos(data, $1) > 0 ORDER BY purl`,
	list:   `SELECT purl, data, created_at FROM namespaces ORDER BY purl`,
}
