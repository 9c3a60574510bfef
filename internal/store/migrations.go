package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/biorecords/biorecords/pkg/errors"
)

// migration is one schema version.
type migration struct {
	version     int
	description string
	statements  []string
}

// migrations are applied in order. Never edit a released migration, append
// a new one instead.
var migrations = []migration{
	{
		version:     1,
		description: "users, lookups and taxonomy",
		statements: []string{
			`CREATE TABLE users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				nickname TEXT NOT NULL DEFAULT '',
				aliases TEXT NOT NULL DEFAULT '',
				role TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				email TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE lookups (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tbl TEXT NOT NULL,
				code TEXT NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				UNIQUE (tbl, code)
			)`,
			`CREATE TABLE taxa (
				name_id INTEGER PRIMARY KEY,
				parent_id INTEGER REFERENCES taxa(name_id) ON DELETE RESTRICT,
				rank INTEGER NOT NULL,
				name TEXT NOT NULL,
				author TEXT NOT NULL DEFAULT '',
				field_code TEXT NOT NULL DEFAULT '',
				publication_status INTEGER NOT NULL DEFAULT 2,
				is_current INTEGER NOT NULL DEFAULT 1,
				supra_group TEXT NOT NULL DEFAULT '',
				paraphyletic_groups TEXT NOT NULL DEFAULT '',
				eoo TEXT,
				canonical_name TEXT NOT NULL DEFAULT '',
				taxonomic_name TEXT NOT NULL DEFAULT '',
				vernacular_name TEXT NOT NULL DEFAULT '',
				vernacular_names TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX idx_taxa_parent ON taxa(parent_id)`,
			`CREATE INDEX idx_taxa_rank ON taxa(rank)`,
			`CREATE TABLE vernaculars (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ogc_fid INTEGER NOT NULL UNIQUE,
				taxon_id INTEGER NOT NULL REFERENCES taxa(name_id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				language INTEGER NOT NULL DEFAULT 0,
				preferred INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX idx_vernaculars_taxon ON vernaculars(taxon_id)`,
			`CREATE TABLE crossreferences (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				xref_id INTEGER NOT NULL UNIQUE,
				predecessor_id INTEGER REFERENCES taxa(name_id) ON DELETE SET NULL,
				successor_id INTEGER REFERENCES taxa(name_id) ON DELETE SET NULL,
				reason INTEGER NOT NULL DEFAULT 7,
				authorised_by TEXT NOT NULL DEFAULT '',
				authorised_on TEXT,
				effective_to TEXT,
				comments TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE communities (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT NOT NULL UNIQUE,
				name TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				eoo TEXT,
				source INTEGER NOT NULL DEFAULT 0,
				source_id TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version:     2,
		description: "conservation lists, listings, documents and management",
		statements: []string{
			`CREATE TABLE conservation_lists (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT NOT NULL UNIQUE,
				label TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				active_from TEXT,
				active_to TEXT,
				scope_wa INTEGER NOT NULL DEFAULT 0,
				scope_cmw INTEGER NOT NULL DEFAULT 0,
				scope_intl INTEGER NOT NULL DEFAULT 0,
				scope_species INTEGER NOT NULL DEFAULT 0,
				scope_communities INTEGER NOT NULL DEFAULT 0,
				approval_level INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE conservation_categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				list_id INTEGER NOT NULL REFERENCES conservation_lists(id) ON DELETE CASCADE,
				code TEXT NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				rank INTEGER NOT NULL DEFAULT 0,
				current_security_ranking INTEGER NOT NULL DEFAULT 0,
				threatened INTEGER NOT NULL DEFAULT 0,
				UNIQUE (list_id, code)
			)`,
			`CREATE TABLE conservation_criteria (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				list_id INTEGER NOT NULL REFERENCES conservation_lists(id) ON DELETE CASCADE,
				code TEXT NOT NULL,
				label TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				rank INTEGER NOT NULL DEFAULT 0,
				UNIQUE (list_id, code)
			)`,
			`CREATE TABLE listings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				taxon_id INTEGER REFERENCES taxa(name_id) ON DELETE CASCADE,
				community_id INTEGER REFERENCES communities(id) ON DELETE CASCADE,
				source INTEGER NOT NULL DEFAULT 0,
				source_id TEXT NOT NULL,
				scope INTEGER NOT NULL DEFAULT 0,
				status INTEGER NOT NULL DEFAULT 0,
				category_cache TEXT NOT NULL DEFAULT '',
				criteria_cache TEXT NOT NULL DEFAULT '',
				label_cache TEXT NOT NULL DEFAULT '',
				proposed_on TEXT,
				effective_from TEXT,
				effective_to TEXT,
				review_due TEXT,
				comments TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (kind, source, source_id)
			)`,
			`CREATE INDEX idx_listings_taxon ON listings(taxon_id)`,
			`CREATE INDEX idx_listings_community ON listings(community_id)`,
			`CREATE TABLE listing_categories (
				listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
				category_id INTEGER NOT NULL REFERENCES conservation_categories(id) ON DELETE RESTRICT,
				PRIMARY KEY (listing_id, category_id)
			)`,
			`CREATE TABLE listing_criteria (
				listing_id INTEGER NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
				criterion_id INTEGER NOT NULL REFERENCES conservation_criteria(id) ON DELETE RESTRICT,
				PRIMARY KEY (listing_id, criterion_id)
			)`,
			`CREATE TABLE documents (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				source_id TEXT NOT NULL UNIQUE,
				document_type INTEGER NOT NULL DEFAULT 0,
				title TEXT NOT NULL,
				effective_from TEXT,
				effective_to TEXT,
				effective_from_commonwealth TEXT,
				effective_to_commonwealth TEXT,
				last_reviewed_on TEXT,
				review_due TEXT,
				comments TEXT NOT NULL DEFAULT '',
				status INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE document_taxa (
				document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				taxon_id INTEGER NOT NULL REFERENCES taxa(name_id) ON DELETE CASCADE,
				PRIMARY KEY (document_id, taxon_id)
			)`,
			`CREATE TABLE document_communities (
				document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				community_id INTEGER NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
				PRIMARY KEY (document_id, community_id)
			)`,
			`CREATE TABLE document_team (
				document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				PRIMARY KEY (document_id, user_id)
			)`,
			`CREATE TABLE attachments (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				owner_type TEXT NOT NULL,
				owner_id INTEGER NOT NULL,
				filename TEXT NOT NULL,
				content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
				size INTEGER NOT NULL DEFAULT 0,
				content BLOB,
				title TEXT NOT NULL DEFAULT '',
				author_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
				confidential INTEGER NOT NULL DEFAULT 1,
				is_current INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX idx_attachments_owner ON attachments(owner_type, owner_id)`,
			`CREATE TABLE threat_categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT NOT NULL UNIQUE,
				label TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE action_categories (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				code TEXT NOT NULL UNIQUE,
				label TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE TABLE threats (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				category_id INTEGER NOT NULL REFERENCES threat_categories(id) ON DELETE RESTRICT,
				document_id INTEGER REFERENCES documents(id) ON DELETE SET NULL,
				occurrence_area_code TEXT NOT NULL DEFAULT '',
				cause TEXT NOT NULL DEFAULT '',
				encountered_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
				encountered_on TEXT,
				area_affected_percent REAL,
				current_impact INTEGER NOT NULL DEFAULT 0,
				potential_impact INTEGER NOT NULL DEFAULT 0,
				potential_onset INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE threat_taxa (
				threat_id INTEGER NOT NULL REFERENCES threats(id) ON DELETE CASCADE,
				taxon_id INTEGER NOT NULL REFERENCES taxa(name_id) ON DELETE CASCADE,
				PRIMARY KEY (threat_id, taxon_id)
			)`,
			`CREATE TABLE threat_communities (
				threat_id INTEGER NOT NULL REFERENCES threats(id) ON DELETE CASCADE,
				community_id INTEGER NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
				PRIMARY KEY (threat_id, community_id)
			)`,
			`CREATE TABLE actions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				category_id INTEGER NOT NULL REFERENCES action_categories(id) ON DELETE RESTRICT,
				document_id INTEGER REFERENCES documents(id) ON DELETE SET NULL,
				occurrence_area_code TEXT NOT NULL DEFAULT '',
				instructions TEXT NOT NULL DEFAULT '',
				implementation_notes TEXT NOT NULL DEFAULT '',
				completion_date TEXT,
				expenditure INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE action_taxa (
				action_id INTEGER NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
				taxon_id INTEGER NOT NULL REFERENCES taxa(name_id) ON DELETE CASCADE,
				PRIMARY KEY (action_id, taxon_id)
			)`,
			`CREATE TABLE action_communities (
				action_id INTEGER NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
				community_id INTEGER NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
				PRIMARY KEY (action_id, community_id)
			)`,
			`CREATE TABLE activities (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				action_id INTEGER NOT NULL REFERENCES actions(id) ON DELETE CASCADE,
				completion_date TEXT,
				implementation_notes TEXT NOT NULL DEFAULT '',
				expenditure INTEGER NOT NULL DEFAULT 0
			)`,
		},
	},
	{
		version:     3,
		description: "area encounters, field encounters and observations",
		statements: []string{
			`CREATE TABLE area_encounters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				source INTEGER NOT NULL DEFAULT 0,
				source_id TEXT NOT NULL,
				code TEXT NOT NULL DEFAULT '',
				label TEXT NOT NULL DEFAULT '',
				name TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				geom TEXT NOT NULL,
				geom_type TEXT NOT NULL,
				accuracy REAL,
				encountered_on TEXT,
				encountered_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
				encounter_type TEXT NOT NULL DEFAULT '',
				taxon_id INTEGER REFERENCES taxa(name_id) ON DELETE CASCADE,
				community_id INTEGER REFERENCES communities(id) ON DELETE CASCADE,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (source, source_id)
			)`,
			`CREATE INDEX idx_area_encounters_kind ON area_encounters(kind, geom_type)`,
			`CREATE TABLE areas (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				area_type TEXT NOT NULL,
				name TEXT NOT NULL,
				geom TEXT NOT NULL,
				northern_extent REAL NOT NULL DEFAULT 0,
				centroid TEXT,
				length_surveyed_m INTEGER,
				length_survey_roundtrip_m INTEGER,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE surveys (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				site_id INTEGER REFERENCES areas(id) ON DELETE SET NULL,
				source TEXT NOT NULL DEFAULT '',
				source_id TEXT NOT NULL DEFAULT '',
				start_time TEXT NOT NULL,
				end_time TEXT,
				start_comments TEXT NOT NULL DEFAULT '',
				end_comments TEXT NOT NULL DEFAULT '',
				reporter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				production INTEGER NOT NULL DEFAULT 1,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE encounters (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				kind TEXT NOT NULL,
				area_id INTEGER REFERENCES areas(id) ON DELETE SET NULL,
				site_id INTEGER REFERENCES areas(id) ON DELETE SET NULL,
				survey_id INTEGER REFERENCES surveys(id) ON DELETE SET NULL,
				where_geom TEXT NOT NULL,
				when_at TEXT NOT NULL,
				location_accuracy TEXT NOT NULL DEFAULT '1000',
				location_accuracy_m REAL,
				name TEXT NOT NULL DEFAULT '',
				observer_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				reporter_id INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
				comments TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'new',
				source TEXT NOT NULL,
				source_id TEXT NOT NULL,
				encounter_type TEXT NOT NULL DEFAULT '',
				details TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (source, source_id)
			)`,
			`CREATE INDEX idx_encounters_when ON encounters(when_at)`,
			`CREATE TABLE observations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				domain TEXT NOT NULL,
				encounter_id INTEGER NOT NULL,
				obstype TEXT NOT NULL,
				data TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX idx_observations_encounter ON observations(domain, encounter_id, obstype)`,
		},
	},
}

// LatestVersion is the schema version Migrate brings a database to.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// Version returns the applied schema version, 0 for an empty database.
func (s *Store) Version(ctx context.Context) (int, error) {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return 0, errors.WrapResource("create", "schema_version", "", err)
	}
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, errors.WrapResource("fetch", "schema_version", "", err)
	}
	return int(v.Int64), nil
}

// Migrate applies pending migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	current, err := s.Version(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.inTx(ctx, func(t *tx) error {
			for _, stmt := range m.statements {
				if _, err := t.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d: %w: %s", m.version, err, firstLine(stmt))
				}
			}
			_, err := t.ExecContext(ctx,
				`INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)`,
				m.version, m.description, formatTime(s.now()))
			return err
		})
		if err != nil {
			return errors.WrapResource("migrate", "schema", fmt.Sprint(m.version), err)
		}
		s.logger.Info().
			Int("version", m.version).
			Str("description", m.description).
			Msg("Applied migration")
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
