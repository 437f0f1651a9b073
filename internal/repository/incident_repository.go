package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kinetix/ima-backend/internal/domain"
)

// ErrConflict matches every *ConflictError.
var ErrConflict = errors.New("incident version conflict")

// ConflictError reports a conditional update against a stale version.
type ConflictError struct {
	IncidentID      string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("incident %s changed: expected version %d, found %d", e.IncidentID, e.ExpectedVersion, e.ActualVersion)
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// IncidentFilter narrows list queries. Zero values mean "any".
type IncidentFilter struct {
	States   []domain.State
	Channels []domain.Channel
	Services []domain.Service
	Search   string
	Limit    int
	Offset   int
}

// IncidentRepository is the storage boundary for incidents.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	Get(ctx context.Context, id string) (*domain.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error)
	// ConditionalUpdate stores next only if the stored version still equals
	// expectedVersion. History entries not yet stored are appended in the same write.
	ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.Incident) (*domain.Incident, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository returns a Postgres-backed implementation.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

const incidentColumns = `id, titulo, descripcion, servicio, canal, instalador, cliente, creado_por,
               estado_actual, created_at, updated_at, version`

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (titulo, descripcion, servicio, canal, instalador, cliente, creado_por, estado_actual, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1)
        RETURNING id, created_at, updated_at, version`
	return r.pool.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Service,
		incident.Channel,
		incident.Installer,
		incident.Client,
		incident.CreatedBy,
		incident.CurrentState,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.LastUpdatedAt, &incident.Version)
}

func (r *incidentRepository) Get(ctx context.Context, id string) (*domain.Incident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=$1`
	incident, err := scanIncident(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	history, err := r.listHistory(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	incident.History = history
	return incident, nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]domain.Incident, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.States) > 0 {
		placeholders := make([]string, len(filter.States))
		for i, state := range filter.States {
			args = append(args, state)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("estado_actual IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Channels) > 0 {
		placeholders := make([]string, len(filter.Channels))
		for i, channel := range filter.Channels {
			args = append(args, channel)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("canal IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Services) > 0 {
		placeholders := make([]string, len(filter.Services))
		for i, service := range filter.Services {
			args = append(args, service)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("servicio IN (%s)", strings.Join(placeholders, ",")))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(titulo) LIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM incidents WHERE %s ORDER BY updated_at DESC`,
		incidentColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Incident{}
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *incident)
	}
	return result, rows.Err()
}

func (r *incidentRepository) ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.Incident) (*domain.Incident, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pgx.ErrNoRows
	}
	var stored *domain.Incident
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const update = `
            UPDATE incidents SET titulo=$1, descripcion=$2, instalador=$3, cliente=$4,
                estado_actual=$5, updated_at=$6, version=version+1
            WHERE id=$7 AND version=$8
            RETURNING ` + incidentColumns
		incident, err := scanIncident(tx.QueryRow(ctx, update,
			next.Title,
			next.Description,
			next.Installer,
			next.Client,
			next.CurrentState,
			next.LastUpdatedAt,
			id,
			expectedVersion,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return r.conflictOrMissing(ctx, tx, id, expectedVersion)
		}
		if err != nil {
			return err
		}

		const insertHistory = `
            INSERT INTO incident_state_history (id, incident_id, from_state, to_state, changed_by, changed_at)
            VALUES ($1,$2,$3,$4,$5,$6)
            ON CONFLICT (id) DO NOTHING`
		batch := &pgx.Batch{}
		for _, change := range next.History {
			batch.Queue(insertHistory, change.ID, id, change.From, change.To, change.ChangedBy, change.ChangedAt)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return err
			}
		}

		history, err := r.listHistory(ctx, tx, id)
		if err != nil {
			return err
		}
		incident.History = history
		stored = incident
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *incidentRepository) conflictOrMissing(ctx context.Context, tx pgx.Tx, id string, expectedVersion int64) error {
	var actual int64
	if err := tx.QueryRow(ctx, `SELECT version FROM incidents WHERE id=$1`, id).Scan(&actual); err != nil {
		return err
	}
	return &ConflictError{IncidentID: id, ExpectedVersion: expectedVersion, ActualVersion: actual}
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *incidentRepository) listHistory(ctx context.Context, q querier, incidentID string) ([]domain.StateChange, error) {
	const query = `
        SELECT id, incident_id, from_state, to_state, changed_by, changed_at
        FROM incident_state_history WHERE incident_id=$1 ORDER BY seq ASC`
	rows, err := q.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []domain.StateChange{}
	for rows.Next() {
		var change domain.StateChange
		if err := rows.Scan(
			&change.ID,
			&change.IncidentID,
			&change.From,
			&change.To,
			&change.ChangedBy,
			&change.ChangedAt,
		); err != nil {
			return nil, err
		}
		history = append(history, change)
	}
	return history, rows.Err()
}

func scanIncident(row pgx.Row) (*domain.Incident, error) {
	var incident domain.Incident
	if err := row.Scan(
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Service,
		&incident.Channel,
		&incident.Installer,
		&incident.Client,
		&incident.CreatedBy,
		&incident.CurrentState,
		&incident.CreatedAt,
		&incident.LastUpdatedAt,
		&incident.Version,
	); err != nil {
		return nil, err
	}
	return &incident, nil
}
