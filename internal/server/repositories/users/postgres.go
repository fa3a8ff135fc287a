package users

import (
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/dbx"
)

type PostgresRepository struct {
	sqlRepository
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{sqlRepository{
		db:  db,
		now: time.Now,
		q: queries{
			insert: `INSERT INTO users (` + userColumns + `)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			findByID:    `SELECT ` + userColumns + ` FROM users WHERE id = $1`,
			findByName:  `SELECT ` + userColumns + ` FROM users WHERE name = $1`,
			findByEmail: `SELECT ` + userColumns + ` FROM users WHERE email = $1`,
			delete:      `DELETE FROM users WHERE id = $1`,
		},
	}}
}
