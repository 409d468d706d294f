package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/arborhq/arbor/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStore implements Store on PostgreSQL. Nested structures are stored
// as JSONB; the engine only ever filters on the indexed key columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	store := &PostgresStore{db: db}

	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("error marshaling analysis: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_records (id, user_id, branch_id, response_text, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.BranchID, rec.ResponseText, analysisJSON, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving analysis record: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentAnalyses(ctx context.Context, userID, branchID string, limit int) ([]*models.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, branch_id, response_text, analysis, created_at
		FROM analysis_records
		WHERE user_id = $1 AND branch_id = $2
		ORDER BY created_at DESC
		LIMIT $3`,
		userID, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying analysis records: %w", err)
	}
	defer rows.Close()

	var records []*models.AnalysisRecord
	for rows.Next() {
		rec := &models.AnalysisRecord{}
		var analysisJSON []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.BranchID, &rec.ResponseText, &analysisJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning analysis record: %w", err)
		}
		if err := json.Unmarshal(analysisJSON, &rec.Analysis); err != nil {
			return nil, fmt.Errorf("error unmarshaling analysis: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetConversationState(ctx context.Context, userID, branchID string) (*models.ConversationState, error) {
	state := &models.ConversationState{}
	var prefsJSON, historyJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, branch_id, phase, last_interaction, preferences, response_history
		FROM conversation_states
		WHERE user_id = $1 AND branch_id = $2`,
		userID, branchID).Scan(&state.UserID, &state.BranchID, &state.Phase, &state.LastInteraction, &prefsJSON, &historyJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying conversation state: %w", err)
	}
	if err := json.Unmarshal(prefsJSON, &state.Preferences); err != nil {
		return nil, fmt.Errorf("error unmarshaling preferences: %w", err)
	}
	if err := json.Unmarshal(historyJSON, &state.ResponseHistory); err != nil {
		return nil, fmt.Errorf("error unmarshaling response history: %w", err)
	}
	return state, nil
}

func (s *PostgresStore) UpsertConversationState(ctx context.Context, state *models.ConversationState) error {
	prefsJSON, err := json.Marshal(state.Preferences)
	if err != nil {
		return fmt.Errorf("error marshaling preferences: %w", err)
	}
	historyJSON, err := json.Marshal(state.ResponseHistory)
	if err != nil {
		return fmt.Errorf("error marshaling response history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_states (user_id, branch_id, phase, last_interaction, preferences, response_history)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, branch_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			last_interaction = EXCLUDED.last_interaction,
			preferences = EXCLUDED.preferences,
			response_history = EXCLUDED.response_history`,
		state.UserID, state.BranchID, state.Phase, state.LastInteraction, prefsJSON, historyJSON)
	if err != nil {
		return fmt.Errorf("error upserting conversation state: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePrompt(ctx context.Context, p *models.SmartPrompt) error {
	responsesJSON, err := json.Marshal(p.SuggestedResponses)
	if err != nil {
		return fmt.Errorf("error marshaling suggested responses: %w", err)
	}
	metadataJSON, err := json.Marshal(p.AIMetadata)
	if err != nil {
		return fmt.Errorf("error marshaling ai metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO smart_prompts (id, branch_id, user_id, content, prompt_type, suggested_responses, ai_metadata, created_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.BranchID, p.UserID, p.Content, p.PromptType, responsesJSON, metadataJSON, p.CreatedAt, p.ExpiresAt, p.Status)
	if err != nil {
		return fmt.Errorf("error creating prompt: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPrompt(ctx context.Context, id string) (*models.SmartPrompt, error) {
	p := &models.SmartPrompt{}
	var responsesJSON, metadataJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, branch_id, user_id, content, prompt_type, suggested_responses, ai_metadata, created_at, expires_at, status
		FROM smart_prompts
		WHERE id = $1`, id).Scan(
		&p.ID, &p.BranchID, &p.UserID, &p.Content, &p.PromptType, &responsesJSON, &metadataJSON, &p.CreatedAt, &p.ExpiresAt, &p.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying prompt: %w", err)
	}
	if err := json.Unmarshal(responsesJSON, &p.SuggestedResponses); err != nil {
		return nil, fmt.Errorf("error unmarshaling suggested responses: %w", err)
	}
	if err := json.Unmarshal(metadataJSON, &p.AIMetadata); err != nil {
		return nil, fmt.Errorf("error unmarshaling ai metadata: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePromptStatus(ctx context.Context, id string, status models.PromptStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE smart_prompts SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating prompt status: %w", err)
	}
	return nil
}

func (s *PostgresStore) PendingPrompts(ctx context.Context, userID, branchID string) ([]*models.SmartPrompt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, user_id, content, prompt_type, suggested_responses, ai_metadata, created_at, expires_at, status
		FROM smart_prompts
		WHERE user_id = $1 AND branch_id = $2 AND status = $3
		ORDER BY created_at DESC`,
		userID, branchID, models.PromptPending)
	if err != nil {
		return nil, fmt.Errorf("error querying pending prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*models.SmartPrompt
	for rows.Next() {
		p := &models.SmartPrompt{}
		var responsesJSON, metadataJSON []byte
		if err := rows.Scan(&p.ID, &p.BranchID, &p.UserID, &p.Content, &p.PromptType, &responsesJSON, &metadataJSON, &p.CreatedAt, &p.ExpiresAt, &p.Status); err != nil {
			return nil, fmt.Errorf("error scanning prompt: %w", err)
		}
		if err := json.Unmarshal(responsesJSON, &p.SuggestedResponses); err != nil {
			return nil, fmt.Errorf("error unmarshaling suggested responses: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &p.AIMetadata); err != nil {
			return nil, fmt.Errorf("error unmarshaling ai metadata: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (s *PostgresStore) HasPromptSince(ctx context.Context, userID, branchID string, pt models.PromptType, since time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM smart_prompts
		WHERE user_id = $1 AND branch_id = $2 AND prompt_type = $3 AND created_at >= $4`,
		userID, branchID, pt, since).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error counting prompts: %w", err)
	}
	return count > 0, nil
}

func (s *PostgresStore) DeleteExpiredPrompts(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM smart_prompts
		WHERE status = $1 AND expires_at < $2`,
		models.PromptPending, now)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired prompts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error getting rows affected: %w", err)
	}
	return int(affected), nil
}

func (s *PostgresStore) scanLeaves(rows *sql.Rows) ([]*models.Leaf, error) {
	var leaves []*models.Leaf
	for rows.Next() {
		l := &models.Leaf{}
		var mediaJSON, tagsJSON []byte
		if err := rows.Scan(&l.ID, &l.BranchID, &l.AuthorID, &l.Content, &mediaJSON, &l.Milestone, &tagsJSON, &l.Season, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning leaf: %w", err)
		}
		if err := json.Unmarshal(mediaJSON, &l.MediaURLs); err != nil {
			return nil, fmt.Errorf("error unmarshaling media urls: %w", err)
		}
		if err := json.Unmarshal(tagsJSON, &l.Tags); err != nil {
			return nil, fmt.Errorf("error unmarshaling tags: %w", err)
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

const leafColumns = `id, branch_id, author_id, content, media_urls, milestone, tags, season, created_at`

func (s *PostgresStore) RecentLeaves(ctx context.Context, branchID string, limit int) ([]*models.Leaf, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leafColumns+` FROM leaves
		WHERE branch_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, branchID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying leaves: %w", err)
	}
	defer rows.Close()
	return s.scanLeaves(rows)
}

func (s *PostgresStore) RecentLeavesByAuthor(ctx context.Context, branchID, authorID string, limit int) ([]*models.Leaf, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leafColumns+` FROM leaves
		WHERE branch_id = $1 AND author_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, branchID, authorID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying leaves by author: %w", err)
	}
	defer rows.Close()
	return s.scanLeaves(rows)
}

func (s *PostgresStore) LeavesSince(ctx context.Context, branchID string, since time.Time) ([]*models.Leaf, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leafColumns+` FROM leaves
		WHERE branch_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, branchID, since)
	if err != nil {
		return nil, fmt.Errorf("error querying leaves since: %w", err)
	}
	defer rows.Close()
	return s.scanLeaves(rows)
}

func (s *PostgresStore) CountLeavesByAuthorSince(ctx context.Context, branchID, authorID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM leaves
		WHERE branch_id = $1 AND author_id = $2 AND created_at >= $3`,
		branchID, authorID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting leaves: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ActiveMembers(ctx context.Context) ([]*models.BranchMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT branch_id, user_id, role, active
		FROM branch_members
		WHERE active = true
		ORDER BY branch_id, user_id`)
	if err != nil {
		return nil, fmt.Errorf("error querying members: %w", err)
	}
	defer rows.Close()

	var members []*models.BranchMember
	for rows.Next() {
		m := &models.BranchMember{}
		if err := rows.Scan(&m.BranchID, &m.UserID, &m.Role, &m.Active); err != nil {
			return nil, fmt.Errorf("error scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) Branches(ctx context.Context) ([]*models.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tree_id, name, description FROM branches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying branches: %w", err)
	}
	defer rows.Close()

	var branches []*models.Branch
	for rows.Next() {
		b := &models.Branch{}
		if err := rows.Scan(&b.ID, &b.TreeID, &b.Name, &b.Description); err != nil {
			return nil, fmt.Errorf("error scanning branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *PostgresStore) GetBranch(ctx context.Context, id string) (*models.Branch, error) {
	b := &models.Branch{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tree_id, name, description FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.TreeID, &b.Name, &b.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying branch: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	u := &models.UserProfile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name FROM user_profiles WHERE id = $1`, id).Scan(&u.ID, &u.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user profile: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
