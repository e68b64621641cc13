// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mdpu/membership-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrApplicationNotFound возвращается, если заявка на членство не найдена.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrAlreadyDecided возвращается при повторном решении по заявке.
	ErrAlreadyDecided = errors.New("application already decided")
	// ErrReportExists возвращается, если отчёт за период уже сформирован.
	ErrReportExists = errors.New("report already exists")
	// ErrReportNotFound возвращается, если отчёт за период отсутствует.
	ErrReportNotFound = errors.New("report not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только сериализационные конфликты и дедлоки.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, email, fullName string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, full_name, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		email, fullName, passwordHash, string(role),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, role, created_at FROM users WHERE email = $1`,
		email,
	)

	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// SetUserRole меняет роль пользователя с указанным email.
func (r *PostgresRepository) SetUserRole(ctx context.Context, email string, role model.Role) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2 WHERE email = $1`,
		email, string(role),
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateApplication сохраняет новую заявку на членство со статусом pending.
func (r *PostgresRepository) CreateApplication(ctx context.Context, app model.Application) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO applications (user_id, full_name, email, phone, chapter, note, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		app.UserID, app.FullName, app.Email, app.Phone, app.Chapter, app.Note,
		string(model.ApplicationStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create application: %w", err)
	}
	return id, nil
}

// GetApplicationByID возвращает заявку по идентификатору.
func (r *PostgresRepository) GetApplicationByID(ctx context.Context, id int64) (*model.Application, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, full_name, email, phone, chapter, note, status, created_at, decided_at
		 FROM applications WHERE id = $1`,
		id,
	)

	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// ListApplications возвращает заявки, опционально отфильтрованные по статусу.
func (r *PostgresRepository) ListApplications(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	query := `SELECT id, user_id, full_name, email, phone, chapter, note, status, created_at, decided_at
	          FROM applications`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	defer rows.Close()

	var res []model.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		res = append(res, *app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*model.Application, error) {
	var app model.Application
	var status string
	err := row.Scan(&app.ID, &app.UserID, &app.FullName, &app.Email, &app.Phone,
		&app.Chapter, &app.Note, &status, &app.CreatedAt, &app.DecidedAt)
	if err != nil {
		return nil, err
	}
	app.Status = model.ApplicationStatus(status)
	return &app, nil
}

// DecideApplication переводит заявку из pending в итоговый статус в одной транзакции.
// Для approved в той же транзакции создаются профиль и публичная карточка
// участника, поэтому частичное применение решения невозможно. Повторное
// решение по уже рассмотренной заявке отклоняется.
func (r *PostgresRepository) DecideApplication(ctx context.Context, id int64, status model.ApplicationStatus) (*model.Application, error) {
	var decided *model.Application

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT id, user_id, full_name, email, phone, chapter, note, status, created_at, decided_at
			 FROM applications WHERE id = $1 FOR UPDATE`,
			id,
		)
		app, err := scanApplication(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrApplicationNotFound
			}
			return fmt.Errorf("lock application: %w", err)
		}

		if app.Status != model.ApplicationStatusPending {
			return ErrAlreadyDecided
		}

		now := time.Now().UTC()

		if status == model.ApplicationStatusApproved {
			_, err = tx.Exec(ctx,
				`INSERT INTO profiles (user_id, full_name, email, phone, chapter, member_role, bio)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				app.UserID, app.FullName, app.Email, app.Phone, app.Chapter, "member", app.Note,
			)
			if err != nil {
				return fmt.Errorf("insert profile: %w", err)
			}

			_, err = tx.Exec(ctx,
				`INSERT INTO members (user_id, full_name, chapter, member_role, bio)
				 VALUES ($1, $2, $3, $4, $5)`,
				app.UserID, app.FullName, app.Chapter, "member", app.Note,
			)
			if err != nil {
				return fmt.Errorf("insert member: %w", err)
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE applications SET status = $2, decided_at = $3 WHERE id = $1`,
			id, string(status), now,
		)
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		app.Status = status
		app.DecidedAt = &now
		decided = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	return decided, nil
}

// CreatePayment сохраняет заявленный платёж со статусом pending.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p model.Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (user_id, method, payment_type, amount, currency, reference, payer_phone, evidence_url, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		p.UserID, string(p.Method), string(p.Type), p.Amount, p.Currency,
		p.Reference, p.PayerPhone, p.EvidenceURL, string(model.PaymentStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return id, nil
}

// GetPaymentsByUser возвращает платежи пользователя.
func (r *PostgresRepository) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, method, payment_type, amount, currency, reference, payer_phone, evidence_url, status, created_at
		 FROM payments
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

// GetPaymentsBetween возвращает платежи в интервале [from, to) с одним из указанных статусов.
func (r *PostgresRepository) GetPaymentsBetween(ctx context.Context, from, to time.Time, statuses []model.PaymentStatus) ([]model.Payment, error) {
	statusStrs := make([]string, 0, len(statuses))
	for _, s := range statuses {
		statusStrs = append(statusStrs, string(s))
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, method, payment_type, amount, currency, reference, payer_phone, evidence_url, status, created_at
		 FROM payments
		 WHERE created_at >= $1 AND created_at < $2 AND status = ANY($3)
		 ORDER BY created_at`,
		from, to, statusStrs,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	var res []model.Payment
	for rows.Next() {
		var (
			p       model.Payment
			method  string
			ptype   string
			pstatus string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &method, &ptype, &p.Amount, &p.Currency,
			&p.Reference, &p.PayerPhone, &p.EvidenceURL, &pstatus, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Method = model.PaymentMethod(method)
		p.Type = model.PaymentType(ptype)
		p.Status = model.PaymentStatus(pstatus)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ReportExists сообщает, сформирован ли отчёт за указанный период.
func (r *PostgresRepository) ReportExists(ctx context.Context, period string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM monthly_reports WHERE period = $1)`,
		period,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check report: %w", err)
	}
	return exists, nil
}

// SaveReport записывает месячный отчёт, перезаписывая существующий за тот же период.
func (r *PostgresRepository) SaveReport(ctx context.Context, rep model.MonthlyReport) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO monthly_reports (period, total_usd, by_currency, by_method, by_type, payment_count, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (period) DO UPDATE SET
		   total_usd = EXCLUDED.total_usd,
		   by_currency = EXCLUDED.by_currency,
		   by_method = EXCLUDED.by_method,
		   by_type = EXCLUDED.by_type,
		   payment_count = EXCLUDED.payment_count,
		   generated_at = EXCLUDED.generated_at`,
		rep.Period, rep.TotalUSD, rep.ByCurrency, rep.ByMethod, rep.ByType,
		rep.PaymentCount, rep.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// GetReport возвращает сохранённый отчёт за период.
func (r *PostgresRepository) GetReport(ctx context.Context, period string) (*model.MonthlyReport, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT period, total_usd, by_currency, by_method, by_type, payment_count, generated_at
		 FROM monthly_reports WHERE period = $1`,
		period,
	)

	var rep model.MonthlyReport
	err := row.Scan(&rep.Period, &rep.TotalUSD, &rep.ByCurrency, &rep.ByMethod,
		&rep.ByType, &rep.PaymentCount, &rep.GeneratedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("get report: %w", err)
	}

	return &rep, nil
}
