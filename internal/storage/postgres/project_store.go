package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-fee-engine/internal/domain"
	"solana-fee-engine/internal/storage"
)

// ProjectStore implements storage.ProjectStore using PostgreSQL. The
// projects table is written by the launch platform; this subsystem only
// reads it.
type ProjectStore struct {
	pool *Pool
}

// NewProjectStore creates a new ProjectStore.
func NewProjectStore(pool *Pool) *ProjectStore {
	return &ProjectStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProjectStore = (*ProjectStore)(nil)

const projectColumns = `project_id, creator_id, token_mint, pool_address, pool_kind, migrated, network, created_at`

// ListClaimable returns projects with a pool on the given network.
func (s *ProjectStore) ListClaimable(ctx context.Context, network string, limit int) ([]*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE network = $1 AND pool_address <> ''
		ORDER BY created_at DESC
	`
	args := []interface{}{network}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claimable projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// GetByPool returns the project owning a pool address.
func (s *ProjectStore) GetByPool(ctx context.Context, poolAddress string) (*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE pool_address = $1
	`

	p, err := scanProject(s.pool.QueryRow(ctx, query, poolAddress))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get project by pool: %w", err)
	}
	return p, nil
}

// GetByID returns a project by ID.
func (s *ProjectStore) GetByID(ctx context.Context, projectID string) (*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE project_id = $1
	`

	p, err := scanProject(s.pool.QueryRow(ctx, query, projectID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get project by id: %w", err)
	}
	return p, nil
}

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	var kind string
	err := row.Scan(&p.ProjectID, &p.CreatorID, &p.TokenMint, &p.PoolAddress,
		&kind, &p.Migrated, &p.Network, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.PoolKind = domain.PoolKind(kind)
	return &p, nil
}

func scanProjects(rows pgx.Rows) ([]*domain.Project, error) {
	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}
