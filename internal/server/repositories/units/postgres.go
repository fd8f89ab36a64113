package units

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/consejo/internal/common"
	"github.com/dmitrijs2005/consejo/internal/dbx"
	"github.com/dmitrijs2005/consejo/internal/server/models"
)

// PostgresRepository implements unit storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByName(ctx context.Context, name string) (*models.Unit, error) {
	query := `
		SELECT id, nombre, parroquia, municipio, estado, created_at, updated_at
		FROM consejos_comunales
		WHERE nombre = $1
	`
	u := &models.Unit{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&u.ID, &u.Name, &u.Parish, &u.Municipality, &u.State, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, unit *models.Unit) (*models.Unit, error) {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	query := `
		INSERT INTO consejos_comunales (id, nombre, parroquia, municipio, estado)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, unit.ID, unit.Name, unit.Parish, unit.Municipality, unit.State).
		Scan(&unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return unit, nil
}
