package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/NabidKabir/kura-final-project/config"
	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
)

type Store struct {
	DB *sql.DB
}

// QueryResultSummary provides a lightweight view of stored workflow results.
type QueryResultSummary struct {
	ID               string    `json:"id"`
	Query            string    `json:"query"`
	WasteType        string    `json:"waste_type"`
	Success          bool      `json:"success"`
	ConfidenceScore  float64   `json:"confidence_score"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AdvisoryRecord captures a fetched regulatory advisory for a state and waste type.
type AdvisoryRecord struct {
	ID        int64     `json:"id"`
	State     string    `json:"state"`
	WasteType string    `json:"waste_type"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Summary   string    `json:"summary"`
	FetchedAt time.Time `json:"fetched_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	metricsOnce     sync.Once
	savedCounter    otelmetric.Int64Counter
	advisoryCounter otelmetric.Int64Counter
	metricsInitErr  error
)

func initStoreMetrics() {
	meter := otel.Meter("store")
	var err error
	savedCounter, err = meter.Int64Counter("query_results_saved_total")
	if err != nil {
		metricsInitErr = err
		return
	}
	advisoryCounter, err = meter.Int64Counter("advisories_upserted_total")
	if err != nil {
		metricsInitErr = err
	}
}

// New constructs the Store from Postgres settings, pinging within the
// configured timeout.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	pingCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// SaveQueryResult persists a completed workflow result. Re-saving the same id
// overwrites the previous record. userID may be empty for anonymous queries.
func (s *Store) SaveQueryResult(ctx context.Context, userID string, res core.WorkflowResult) error {
	if strings.TrimSpace(res.ID) == "" {
		return fmt.Errorf("result id required")
	}
	location, err := marshalNullable(res.Location == nil, res.Location)
	if err != nil {
		return fmt.Errorf("marshal location: %w", err)
	}
	classification, err := marshalNullable(res.Classification == nil, res.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	regulation, err := marshalNullable(res.Regulation == nil, res.Regulation)
	if err != nil {
		return fmt.Errorf("marshal regulation: %w", err)
	}
	facilities := res.Facilities
	if facilities == nil {
		facilities = []core.Facility{}
	}
	facilitiesJSON, err := json.Marshal(facilities)
	if err != nil {
		return fmt.Errorf("marshal facilities: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
INSERT INTO query_results (
  id, user_id, query, waste_type, success, final_response, error_message,
  user_location, waste_classification, local_regulations, disposal_locations,
  confidence_score, processing_time_ms, iterations, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5, $6, $7,
  $8, $9, $10, $11,
  $12, $13, $14, NOW(), NOW()
)
ON CONFLICT (id) DO UPDATE SET
  query = EXCLUDED.query,
  waste_type = EXCLUDED.waste_type,
  success = EXCLUDED.success,
  final_response = EXCLUDED.final_response,
  error_message = EXCLUDED.error_message,
  user_location = EXCLUDED.user_location,
  waste_classification = EXCLUDED.waste_classification,
  local_regulations = EXCLUDED.local_regulations,
  disposal_locations = EXCLUDED.disposal_locations,
  confidence_score = EXCLUDED.confidence_score,
  processing_time_ms = EXCLUDED.processing_time_ms,
  iterations = EXCLUDED.iterations,
  updated_at = NOW();
`,
		res.ID, nullableString(strings.TrimSpace(userID)), res.Query, string(res.WasteType), res.Success,
		res.FinalResponse, nullableString(res.ErrorMessage),
		location, classification, regulation, facilitiesJSON,
		res.ConfidenceScore, res.ProcessingTimeMS, res.Iterations,
	)
	if err != nil {
		return err
	}

	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && savedCounter != nil {
		savedCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("waste_type", string(res.WasteType)),
		))
	}
	return nil
}

// GetQueryResult fetches a stored workflow result. With a non-empty userID the
// lookup is scoped to that user's results. Bool indicates if a record exists.
func (s *Store) GetQueryResult(ctx context.Context, id string, userID string) (core.WorkflowResult, bool, error) {
	if strings.TrimSpace(id) == "" {
		return core.WorkflowResult{}, false, fmt.Errorf("result id required")
	}
	var row *sql.Row
	if strings.TrimSpace(userID) == "" {
		row = s.DB.QueryRowContext(ctx, `
SELECT id, query, waste_type, success, final_response, COALESCE(error_message,''),
       user_location, waste_classification, local_regulations, disposal_locations,
       confidence_score, processing_time_ms, iterations, created_at
FROM query_results
WHERE id=$1
`, id)
	} else {
		row = s.DB.QueryRowContext(ctx, `
SELECT id, query, waste_type, success, final_response, COALESCE(error_message,''),
       user_location, waste_classification, local_regulations, disposal_locations,
       confidence_score, processing_time_ms, iterations, created_at
FROM query_results
WHERE id=$1 AND user_id=$2
`, id, userID)
	}

	var (
		res       core.WorkflowResult
		wasteType string
		locationB []byte
		classB    []byte
		regB      []byte
		facB      []byte
	)
	if err := row.Scan(&res.ID, &res.Query, &wasteType, &res.Success, &res.FinalResponse, &res.ErrorMessage,
		&locationB, &classB, &regB, &facB,
		&res.ConfidenceScore, &res.ProcessingTimeMS, &res.Iterations, &res.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return core.WorkflowResult{}, false, nil
		}
		return core.WorkflowResult{}, false, err
	}
	res.WasteType = core.WasteType(wasteType)
	if len(locationB) > 0 {
		var loc core.Location
		if err := json.Unmarshal(locationB, &loc); err == nil {
			res.Location = &loc
		}
	}
	if len(classB) > 0 {
		var cls core.Classification
		if err := json.Unmarshal(classB, &cls); err == nil {
			res.Classification = &cls
		}
	}
	if len(regB) > 0 {
		var reg core.Regulation
		if err := json.Unmarshal(regB, &reg); err == nil {
			res.Regulation = &reg
		}
	}
	res.Facilities = []core.Facility{}
	if len(facB) > 0 {
		_ = json.Unmarshal(facB, &res.Facilities)
	}
	return res, true, nil
}

// ListQueryResults returns summaries of a user's stored results, newest first.
func (s *Store) ListQueryResults(ctx context.Context, userID string, limit int) ([]QueryResultSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(userID) == "" {
		rows, err = s.DB.QueryContext(ctx, `
SELECT id, query, waste_type, success, confidence_score, processing_time_ms, created_at
FROM query_results
ORDER BY created_at DESC
LIMIT $1
`, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
SELECT id, query, waste_type, success, confidence_score, processing_time_ms, created_at
FROM query_results
WHERE user_id=$1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QueryResultSummary
	for rows.Next() {
		var rec QueryResultSummary
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.WasteType, &rec.Success, &rec.ConfidenceScore, &rec.ProcessingTimeMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneQueryResults deletes results older than the retention window and
// reports how many rows were removed.
func (s *Store) PruneQueryResults(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}
	res, err := s.DB.ExecContext(ctx, `
DELETE FROM query_results
WHERE created_at < NOW() - make_interval(days => $1)
`, retentionDays)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertAdvisory inserts or refreshes an advisory keyed by (state, waste_type, url).
func (s *Store) UpsertAdvisory(ctx context.Context, rec AdvisoryRecord) error {
	state := strings.ToUpper(strings.TrimSpace(rec.State))
	wasteType := strings.ToLower(strings.TrimSpace(rec.WasteType))
	url := strings.TrimSpace(rec.URL)
	if state == "" || wasteType == "" || url == "" {
		return fmt.Errorf("state, waste_type, and url are required")
	}
	fetched := rec.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO advisories (state, waste_type, title, url, summary, fetched_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (state, waste_type, url) DO UPDATE SET
  title = EXCLUDED.title,
  summary = EXCLUDED.summary,
  fetched_at = EXCLUDED.fetched_at,
  updated_at = NOW();
`, state, wasteType, rec.Title, url, rec.Summary, fetched)
	if err != nil {
		return err
	}

	metricsOnce.Do(initStoreMetrics)
	if metricsInitErr == nil && advisoryCounter != nil {
		advisoryCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("state", state),
			attribute.String("waste_type", wasteType),
		))
	}
	return nil
}

// ListAdvisories returns advisories for a state covering any of the given
// waste types, newest fetch first. An empty type list returns all of the
// state's advisories.
func (s *Store) ListAdvisories(ctx context.Context, state string, wasteTypes []string) ([]AdvisoryRecord, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return nil, fmt.Errorf("state required")
	}
	var (
		rows *sql.Rows
		err  error
	)
	if len(wasteTypes) == 0 {
		rows, err = s.DB.QueryContext(ctx, `
SELECT id, state, waste_type, title, url, COALESCE(summary,''), fetched_at, created_at, updated_at
FROM advisories
WHERE state=$1
ORDER BY fetched_at DESC
`, state)
	} else {
		types := make([]string, 0, len(wasteTypes))
		for _, wt := range wasteTypes {
			if t := strings.ToLower(strings.TrimSpace(wt)); t != "" {
				types = append(types, t)
			}
		}
		rows, err = s.DB.QueryContext(ctx, `
SELECT id, state, waste_type, title, url, COALESCE(summary,''), fetched_at, created_at, updated_at
FROM advisories
WHERE state=$1 AND waste_type = ANY($2)
ORDER BY fetched_at DESC
`, state, pq.Array(types))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdvisoryRecord
	for rows.Next() {
		var rec AdvisoryRecord
		if err := rows.Scan(&rec.ID, &rec.State, &rec.WasteType, &rec.Title, &rec.URL, &rec.Summary, &rec.FetchedAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func marshalNullable(isNil bool, v interface{}) (interface{}, error) {
	if isNil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
