// Package postgresdb is the PostgreSQL storage backend. It persists
// users and aliases through database/sql over the pgx driver, runs
// goose migrations on startup, and lets the schema enforce the email
// uniqueness and ownership contracts.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/patric-chuzhbe/tinyapp/internal/alias"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB implements storage.Storage on a PostgreSQL connection.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// InitOption defines a functional option for database initialization.
type InitOption func(*initOptions)

type initOptions struct {
	DBPreReset bool
}

// WithDBPreReset drops all public tables before migrating. For test
// setups only.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to PostgreSQL, runs migrations from migrationsDir and
// returns a ready PostgresDB.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil, fmt.Errorf("error while `result.resetDB()` calling: %w", err)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("error while `goose.SetDialect()` calling: %w", err)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil, fmt.Errorf("error while `goose.Up()` calling: %w", err)
	}

	return result, nil
}

// CreateUser inserts a new user record. The unique index on email maps
// to models.ErrDuplicateEmail.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User, transaction *sql.Tx) (string, error) {
	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}

	_, err := database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		usr.ID,
		usr.Email,
		usr.PasswordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return "", models.ErrDuplicateEmail
		}
		return "", err
	}

	return usr.ID, nil
}

// GetUserByID fetches a user by UUID. Returns nil for unknown IDs.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string, transaction *sql.Tx) (*user.User, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	if userID == "" {
		return nil, nil
	}

	row := database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE id = $1`,
		userID,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return usr, nil
}

// FindUserByEmail looks up a user by exact email match.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string, transaction *sql.Tx) (*user.User, bool, error) {
	var database queryer
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	row := database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM users WHERE email = $1`,
		email,
	)
	usr := &user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return usr, true, nil
}

// GetNumberOfUsers returns the total amount of registered users.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// SaveAlias inserts a new alias record. The primary key on code makes
// the insert the atomic existence check; the unique violation surfaces
// as models.ErrCodeTaken.
func (db *PostgresDB) SaveAlias(ctx context.Context, a *alias.Alias, transaction *sql.Tx) error {
	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	_, err := database.ExecContext(
		ctx,
		`INSERT INTO aliases (code, target_url, owner_id) VALUES ($1, $2, $3)`,
		a.Code,
		a.TargetURL,
		a.OwnerID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.ErrCodeTaken
		}

		return err
	}

	return nil
}

// GetAliasByCode fetches the alias stored under code.
func (db *PostgresDB) GetAliasByCode(ctx context.Context, code string) (*alias.Alias, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT code, target_url, owner_id FROM aliases WHERE code = $1`,
		code,
	)
	a := &alias.Alias{}
	err := row.Scan(&a.Code, &a.TargetURL, &a.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return a, true, nil
}

// GetAliasesByOwner returns every alias whose owner_id equals ownerID.
func (db *PostgresDB) GetAliasesByOwner(ctx context.Context, ownerID string) ([]*alias.Alias, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT code, target_url, owner_id FROM aliases WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*alias.Alias{}
	for rows.Next() {
		a := &alias.Alias{}
		if err := rows.Scan(&a.Code, &a.TargetURL, &a.OwnerID); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// UpdateAliasTarget replaces the target URL of an existing alias.
func (db *PostgresDB) UpdateAliasTarget(ctx context.Context, code, newTargetURL string, transaction *sql.Tx) error {
	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	result, err := database.ExecContext(
		ctx,
		`UPDATE aliases SET target_url = $2 WHERE code = $1`,
		code,
		newTargetURL,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteAlias removes the alias and reports whether it existed.
func (db *PostgresDB) DeleteAlias(ctx context.Context, code string) (bool, error) {
	result, err := db.database.ExecContext(
		ctx,
		`DELETE FROM aliases WHERE code = $1`,
		code,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// DeleteOwnerAliases removes, per owner, only the codes the owner holds.
// The ownership check lives in the WHERE clause.
func (db *PostgresDB) DeleteOwnerAliases(ctx context.Context, ownersCodes map[string][]string) error {
	transaction, err := db.BeginTransaction()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.RollbackTransaction(transaction)
	}()

	for ownerID, codes := range ownersCodes {
		if len(codes) == 0 {
			continue
		}
		_, err := transaction.ExecContext(
			ctx,
			`DELETE FROM aliases WHERE owner_id = $1 AND code = ANY($2)`,
			ownerID,
			codes,
		)
		if err != nil {
			return err
		}
	}

	return db.CommitTransaction(transaction)
}

// GetNumberOfAliases returns the total amount of stored aliases.
func (db *PostgresDB) GetNumberOfAliases(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM aliases`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// BeginTransaction starts a new SQL transaction. The caller commits or
// rolls it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// CommitTransaction commits the given SQL transaction.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// Ping verifies connectivity within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf("error while `db.database.ExecContext()` calling: %w", err)
	}

	return nil
}
