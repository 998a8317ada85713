package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"streetbasket/internal/domain"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account with this email or phone already exists")
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	ExistsByIdentifiers(ctx context.Context, email string, phone *string) (bool, error)
	UpdateProfile(ctx context.Context, account *domain.Account) error
	UpdateDocument(ctx context.Context, id int64, documentPath string) error
}

type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new instance of AccountRepository
func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, role, name, email, phone, password_hash, location, document_path, created_at, updated_at`

func scanAccount(row interface{ Scan(...interface{}) error }) (*domain.Account, error) {
	account := &domain.Account{}
	var phone, documentPath sql.NullString
	err := row.Scan(
		&account.ID,
		&account.Role,
		&account.Name,
		&account.Email,
		&phone,
		&account.PasswordHash,
		&account.Location,
		&documentPath,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		account.Phone = &phone.String
	}
	if documentPath.Valid {
		account.DocumentPath = &documentPath.String
	}
	return account, nil
}

// Create inserts a new account and fills in its generated ID and timestamps
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (role, name, email, phone, password_hash, location, document_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		string(account.Role),
		account.Name,
		account.Email,
		account.Phone,
		account.PasswordHash,
		account.Location,
		account.DocumentPath,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// FindByID retrieves an account by ID
func (r *accountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	return r.findByID(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// FindByIDForUpdate retrieves an account and locks its row until the surrounding transaction ends
func (r *accountRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return r.findByID(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
}

func (r *accountRepository) findByID(ctx context.Context, query string, id int64) (*domain.Account, error) {
	account, err := scanAccount(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by ID: %w", err)
	}

	return account, nil
}

// FindByEmail retrieves an account by its normalized email
func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	account, err := scanAccount(conn(ctx, r.db).QueryRowContext(ctx, query, domain.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}

	return account, nil
}

// FindByIdentifier retrieves an account whose email or phone matches identifier
func (r *accountRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1 OR phone = $2 LIMIT 1`

	account, err := scanAccount(conn(ctx, r.db).QueryRowContext(ctx, query, domain.NormalizeEmail(identifier), identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by identifier: %w", err)
	}

	return account, nil
}

// ExistsByIdentifiers reports whether the email or phone is already registered
func (r *accountRepository) ExistsByIdentifiers(ctx context.Context, email string, phone *string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 OR ($2::text IS NOT NULL AND phone = $2::text))`

	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, domain.NormalizeEmail(email), phone).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account identifiers: %w", err)
	}

	return exists, nil
}

// UpdateProfile stores the editable profile fields of an account
func (r *accountRepository) UpdateProfile(ctx context.Context, account *domain.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, location = $3
		WHERE id = $1
		RETURNING updated_at
	`

	err := conn(ctx, r.db).QueryRowContext(ctx, query, account.ID, account.Name, account.Location).Scan(&account.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update account: %w", err)
	}

	return nil
}

// UpdateDocument points an account at a newly stored identity document
func (r *accountRepository) UpdateDocument(ctx context.Context, id int64, documentPath string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE accounts SET document_path = $2 WHERE id = $1`, id, documentPath)
	if err != nil {
		return fmt.Errorf("failed to update account document: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}
