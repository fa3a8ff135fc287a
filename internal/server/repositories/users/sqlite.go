package users

import (
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/dbx"
)

type SQLiteRepository struct {
	sqlRepository
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{sqlRepository{
		db:  db,
		now: time.Now,
		q: queries{
			insert: `INSERT INTO users (` + userColumns + `)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			findByID:    `SELECT ` + userColumns + ` FROM users WHERE id = ?`,
			findByName:  `SELECT ` + userColumns + ` FROM users WHERE name = ?`,
			findByEmail: `SELECT ` + userColumns + ` FROM users WHERE email = ?`,
			delete:      `DELETE FROM users WHERE id = ?`,
		},
	}}
}
