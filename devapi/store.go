package devapi

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	authstate "github.com/goliatone/go-auth-state"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	sqliteCreateSupportCenters = `CREATE TABLE IF NOT EXISTS support_centers (
	id TEXT NOT NULL PRIMARY KEY,
	name TEXT NOT NULL
);`
	sqliteCreateAccounts = `CREATE TABLE IF NOT EXISTS accounts (
	id TEXT NOT NULL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	loggedin_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	sqliteCreateStudents = `CREATE TABLE IF NOT EXISTS students (
	id TEXT NOT NULL PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
	ra TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	birth_date TEXT,
	support_center_id TEXT REFERENCES support_centers(id)
);`
)

// ErrAccountNotFound no account matches the lookup
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrStudentNotFound no student record matches the id
var ErrStudentNotFound = goerrors.New("student not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// OpenSQLite opens a bun database over the sqlite shim. Use ":memory:" for
// a throwaway database.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite")
	}
	// every connection to :memory: is its own database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable foreign keys")
	}
	return db, nil
}

// Store keeps accounts and student records
type Store struct {
	db         *bun.DB
	bcryptCost int
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithBcryptCost sets the cost used to hash seeded passwords
func WithBcryptCost(cost int) StoreOption {
	return func(s *Store) {
		s.bcryptCost = cost
	}
}

// NewStore creates a store over db
func NewStore(db *bun.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:         db,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DB returns the underlying database
func (s *Store) DB() *bun.DB {
	return s.db
}

// Migrate creates the tables when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range []string{sqliteCreateSupportCenters, sqliteCreateAccounts, sqliteCreateStudents} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to migrate dev store")
		}
	}
	return nil
}

// Seed creates every account in seeds inside one transaction
func (s *Store) Seed(ctx context.Context, seeds ...AccountSeed) ([]*Account, error) {
	var accounts []*Account
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, seed := range seeds {
			acc, err := s.createAccount(ctx, tx, seed)
			if err != nil {
				return err
			}
			accounts = append(accounts, acc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) createAccount(ctx context.Context, db bun.IDB, seed AccountSeed) (*Account, error) {
	if !seed.Role.IsValid() {
		return nil, goerrors.New("seed role must be admin, coordinator or student", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"role": string(seed.Role), "email": seed.Email})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), s.bcryptCost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	acc := &Account{
		ID:           seed.ID,
		Email:        strings.ToLower(strings.TrimSpace(seed.Email)),
		Role:         string(seed.Role),
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}

	if _, err := db.NewInsert().Model(acc).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "failed to insert account").
			WithMetadata(map[string]any{"email": acc.Email})
	}

	if seed.Student == nil {
		return acc, nil
	}

	student := &StudentRecord{
		ID:        acc.ID,
		RA:        seed.Student.RegistrationID,
		Name:      seed.Student.Name,
		Email:     seed.Student.Email,
		BirthDate: seed.Student.BirthDate,
	}
	if student.Email == "" {
		student.Email = acc.Email
	}

	if sc := seed.Student.SupportCenter; sc.ID != "" {
		center := &SupportCenterRecord{ID: sc.ID, Name: sc.Name}
		_, err := db.NewInsert().
			Model(center).
			On("CONFLICT (id) DO UPDATE").
			Set("name = EXCLUDED.name").
			Exec(ctx)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upsert support center")
		}
		student.SupportCenterID = sc.ID
	}

	if _, err := db.NewInsert().Model(student).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "failed to insert student").
			WithMetadata(map[string]any{"ra": student.RA})
	}

	return acc, nil
}

// CountAccounts returns how many accounts exist
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*Account)(nil)).Count(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count accounts")
	}
	return count, nil
}

// Authenticate checks email and password and stamps the login time
func (s *Store) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc := new(Account)
	err := s.db.NewSelect().
		Model(acc).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authstate.ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, authstate.ErrInvalidCredentials
	}

	now := time.Now()
	_, err = s.db.NewUpdate().
		Model(acc).
		Set("loggedin_at = ?", now).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}
	acc.LoggedInAt = &now

	return acc, nil
}

// FindAccount loads an account by id
func (s *Store) FindAccount(ctx context.Context, id string) (*Account, error) {
	acc := new(Account)
	err := s.db.NewSelect().
		Model(acc).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}
	return acc, nil
}

// FindStudent loads a student with its support center
func (s *Store) FindStudent(ctx context.Context, id string) (*StudentRecord, error) {
	student := new(StudentRecord)
	err := s.db.NewSelect().
		Model(student).
		Relation("SupportCenter").
		Where("st.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load student")
	}
	return student, nil
}
