// Package store persists profiles and attribute-index entries in Postgres
// (pgvector for similarity) and keeps a local SQLite log of ranking requests.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/index"
	"github.com/noahgsolomon/peerscout/internal/engine/profiles"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres holds the pgx connection pool for profile and index storage.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect creates a pgx pool and runs schema migrations.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db := &Postgres{pool: pool}
	if err := db.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("postgres connected", slog.String("addr", config.ConnConfig.Host))
	return db, nil
}

func (db *Postgres) Close() {
	db.pool.Close()
}

func (db *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := db.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// --- profiles.Store ---

// GetProfile loads a profile row and its average embeddings.
func (db *Postgres) GetProfile(ctx context.Context, id string) (*profiles.Profile, error) {
	p := &profiles.Profile{ID: id}
	err := db.pool.QueryRow(ctx, `
		SELECT name, location, skills, job_titles, companies, schools, fields_of_study, sources,
		       followers, following, contributions, stars
		FROM profiles WHERE id = $1`, id).Scan(
		&p.Name, &p.Location, &p.Skills, &p.JobTitles, &p.Companies, &p.Schools, &p.Fields, &p.Sources,
		&p.Activeness.Followers, &p.Activeness.Following, &p.Activeness.Contributions, &p.Activeness.Stars,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}

	rows, err := db.pool.Query(ctx, `SELECT signal, embedding::text FROM profile_embeddings WHERE profile_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get profile embeddings %s: %w", id, err)
	}
	defer rows.Close()

	p.Embeddings = make(map[rank.Signal][]float32)
	for rows.Next() {
		var sig, lit string
		if err := rows.Scan(&sig, &lit); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := parseVector(lit)
		if err != nil {
			return nil, fmt.Errorf("parse embedding %s/%s: %w", id, sig, err)
		}
		p.Embeddings[rank.Signal(sig)] = vec
	}
	return p, rows.Err()
}

// SaveProfile upserts the profile row and replaces its average embeddings in
// one transaction.
func (db *Postgres) SaveProfile(ctx context.Context, p *profiles.Profile) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, name, location, skills, job_titles, companies, schools, fields_of_study, sources,
		                      followers, following, contributions, stars)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			skills = EXCLUDED.skills,
			job_titles = EXCLUDED.job_titles,
			companies = EXCLUDED.companies,
			schools = EXCLUDED.schools,
			fields_of_study = EXCLUDED.fields_of_study,
			sources = EXCLUDED.sources,
			followers = EXCLUDED.followers,
			following = EXCLUDED.following,
			contributions = EXCLUDED.contributions,
			stars = EXCLUDED.stars,
			updated_at = now()`,
		p.ID, p.Name, p.Location,
		orEmpty(p.Skills), orEmpty(p.JobTitles), orEmpty(p.Companies), orEmpty(p.Schools), orEmpty(p.Fields), orEmpty(p.Sources),
		p.Activeness.Followers, p.Activeness.Following, p.Activeness.Contributions, p.Activeness.Stars,
	)
	if err != nil {
		return fmt.Errorf("upsert profile %s: %w", p.ID, err)
	}

	// Average embeddings are recomputed, not appended: replace wholesale.
	if _, err := tx.Exec(ctx, `DELETE FROM profile_embeddings WHERE profile_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clear embeddings %s: %w", p.ID, err)
	}
	for sig, vec := range p.Embeddings {
		_, err := tx.Exec(ctx, `INSERT INTO profile_embeddings (profile_id, signal, embedding) VALUES ($1, $2, $3::vector)`,
			p.ID, string(sig), vectorToString(vec))
		if err != nil {
			return fmt.Errorf("insert embedding %s/%s: %w", p.ID, sig, err)
		}
	}

	return tx.Commit(ctx)
}

// --- index.EntryStore ---

// GetEntry returns the attribute entry for (signal, value).
func (db *Postgres) GetEntry(ctx context.Context, sig rank.Signal, value string) (*index.Entry, error) {
	e := &index.Entry{Signal: sig, Value: value}
	var lit string
	err := db.pool.QueryRow(ctx,
		`SELECT embedding::text, member_ids FROM attribute_entries WHERE signal = $1 AND value = $2`,
		string(sig), value).Scan(&lit, &e.MemberIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s/%q: %w", sig, value, err)
	}
	if e.Embedding, err = parseVector(lit); err != nil {
		return nil, fmt.Errorf("parse entry vector %s/%q: %w", sig, value, err)
	}
	return e, nil
}

// InsertEntry persists a new attribute entry.
func (db *Postgres) InsertEntry(ctx context.Context, e *index.Entry) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO attribute_entries (signal, value, embedding, member_ids) VALUES ($1, $2, $3::vector, $4)`,
		string(e.Signal), e.Value, vectorToString(e.Embedding), orEmpty(e.MemberIDs))
	return err
}

// AddMember appends profileID to the membership set if absent.
func (db *Postgres) AddMember(ctx context.Context, sig rank.Signal, value, profileID string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE attribute_entries
		SET member_ids = array_append(member_ids, $3)
		WHERE signal = $1 AND value = $2 AND NOT ($3 = ANY(member_ids))`,
		string(sig), value, profileID)
	return err
}

// RemoveMember deletes profileID from the membership set.
func (db *Postgres) RemoveMember(ctx context.Context, sig rank.Signal, value, profileID string) error {
	_, err := db.pool.Exec(ctx, `
		UPDATE attribute_entries
		SET member_ids = array_remove(member_ids, $3)
		WHERE signal = $1 AND value = $2`,
		string(sig), value, profileID)
	return err
}

// --- rank.Querier ---

// Query returns attribute values whose cosine similarity to vec exceeds
// floor, best first, with their member profile ids. An empty result is a
// valid outcome, not an error.
func (db *Postgres) Query(ctx context.Context, sig rank.Signal, vec []float32, floor float64, topK int) ([]rank.Match, error) {
	engine.CountVectorQuery()
	if topK <= 0 {
		topK = 25
	}

	rows, err := db.pool.Query(ctx, `
		SELECT value, 1 - (embedding <=> $1::vector) AS score, member_ids
		FROM attribute_entries
		WHERE signal = $2 AND 1 - (embedding <=> $1::vector) > $3
		ORDER BY embedding <=> $1::vector
		LIMIT $4`,
		vectorToString(vec), string(sig), floor, topK)
	if err != nil {
		return nil, fmt.Errorf("vector query %s: %w", sig, err)
	}
	defer rows.Close()

	var out []rank.Match
	for rows.Next() {
		var m rank.Match
		if err := rows.Scan(&m.Value, &m.Score, &m.MemberIDs); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- rank.MetaProvider ---

// GetProfileMeta loads activeness sub-metrics and provenance for a candidate
// pool in one round trip.
func (db *Postgres) GetProfileMeta(ctx context.Context, ids []string) (map[string]rank.ProfileMeta, error) {
	if len(ids) == 0 {
		return map[string]rank.ProfileMeta{}, nil
	}

	rows, err := db.pool.Query(ctx, `
		SELECT id, sources, followers, following, contributions, stars
		FROM profiles WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("profile meta: %w", err)
	}
	defer rows.Close()

	out := make(map[string]rank.ProfileMeta, len(ids))
	for rows.Next() {
		var id string
		var meta rank.ProfileMeta
		if err := rows.Scan(&id, &meta.Sources,
			&meta.Activeness.Followers, &meta.Activeness.Following,
			&meta.Activeness.Contributions, &meta.Activeness.Stars); err != nil {
			return nil, fmt.Errorf("scan profile meta: %w", err)
		}
		out[id] = meta
	}
	return out, rows.Err()
}

// --- pgvector literals ---

// vectorToString converts a float32 slice to pgvector format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(float64(val), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses pgvector's text representation.
func parseVector(lit string) ([]float32, error) {
	lit = strings.TrimSpace(lit)
	lit = strings.TrimPrefix(lit, "[")
	lit = strings.TrimSuffix(lit, "]")
	if lit == "" {
		return nil, nil
	}
	parts := strings.Split(lit, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// orEmpty maps a nil slice to an empty one so pgx writes '{}' not NULL.
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
