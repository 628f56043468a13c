package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dukaan/backend/internal/domain"
	"dukaan/backend/internal/store"
	"dukaan/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price_paise, category, stock, image
		FROM items
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.PricePaise, &item.Category, &item.Stock, &item.Image); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, price_paise, category, stock, image
		FROM items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.PricePaise, &item.Category, &item.Stock, &item.Image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if item.Name == "" || item.PricePaise < 0 || item.Stock < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, name, price_paise, category, stock, image, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now(),now())
	`, item.ID, item.Name, item.PricePaise, item.Category, item.Stock, item.Image)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) DeductStock(ctx context.Context, itemID string, qty int) (int, error) {
	var remaining int
	err := s.db.QueryRowContext(ctx, `
		UPDATE items
		SET stock = GREATEST(stock - $2, 0), updated_at = now()
		WHERE id = $1
		RETURNING stock
	`, itemID, qty).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrNotFound
		}
		return 0, err
	}
	return remaining, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if tx.Kind == "" || tx.Status == "" {
		return nil, store.ErrInvalidTransaction
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var customerName, customerPhone, customerNote any
	if tx.Customer != nil {
		customerName = tx.Customer.Name
		customerPhone = nullIfEmpty(tx.Customer.Phone)
		customerNote = nullIfEmpty(tx.Customer.Note)
	}
	var deliveryDate, deliveryTime any
	if tx.Delivery != nil {
		deliveryDate = tx.Delivery.Date
		deliveryTime = tx.Delivery.Time
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, kind, status, total_value_paise, amount_paise, description,
			customer_name, customer_phone, customer_note, delivery_date, delivery_time,
			payment_method, advance_paise, balance_paise, payment_status, balance_method, balance_paid_at,
			order_ref, terminal_id, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
	`,
		tx.ID, tx.Kind, tx.Status, tx.TotalValuePaise, tx.AmountPaise, tx.Description,
		customerName, customerPhone, customerNote, deliveryDate, deliveryTime,
		tx.Payment.Method, tx.Payment.AdvancePaise, tx.Payment.BalancePaise, tx.Payment.Status,
		nullIfEmpty(tx.Payment.BalanceMethod), nullTime(tx.Payment.BalancePaidAt),
		nullIfEmpty(tx.OrderRef), nullIfEmpty(tx.TerminalID), nullIfEmpty(tx.CreatedBy), tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	for _, line := range tx.Items {
		if line.Qty < 1 {
			return nil, store.ErrInvalidTransaction
		}
		if _, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, item_id, name, unit_price_paise, qty, category, note)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, tx.ID, line.ItemID, line.Name, line.UnitPricePaise, line.Qty, line.Category, line.Note); err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	created := tx
	created.CreatedAt = tx.CreatedAt.UTC()
	return &created, nil
}

const transactionColumns = `
	id, kind, status, total_value_paise, amount_paise, description,
	customer_name, customer_phone, customer_note, delivery_date, delivery_time,
	payment_method, advance_paise, balance_paise, payment_status, balance_method, balance_paid_at,
	order_ref, terminal_id, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var customerName, customerPhone, customerNote sql.NullString
	var deliveryDate, deliveryTime sql.NullString
	var balanceMethod, orderRef, terminalID, createdBy sql.NullString
	var balancePaidAt sql.NullTime

	err := row.Scan(
		&tx.ID, &tx.Kind, &tx.Status, &tx.TotalValuePaise, &tx.AmountPaise, &tx.Description,
		&customerName, &customerPhone, &customerNote, &deliveryDate, &deliveryTime,
		&tx.Payment.Method, &tx.Payment.AdvancePaise, &tx.Payment.BalancePaise, &tx.Payment.Status,
		&balanceMethod, &balancePaidAt,
		&orderRef, &terminalID, &createdBy, &tx.CreatedAt,
	)
	if err != nil {
		return tx, err
	}

	if customerName.Valid {
		tx.Customer = &domain.CustomerRef{
			Name:  customerName.String,
			Phone: customerPhone.String,
			Note:  customerNote.String,
		}
	}
	if deliveryDate.Valid {
		tx.Delivery = &domain.DeliverySchedule{Date: deliveryDate.String, Time: deliveryTime.String}
	}
	tx.Payment.BalanceMethod = balanceMethod.String
	if balancePaidAt.Valid {
		at := balancePaidAt.Time.UTC()
		tx.Payment.BalancePaidAt = &at
	}
	tx.OrderRef = orderRef.String
	tx.TerminalID = terminalID.String
	tx.CreatedBy = createdBy.String
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.Items = []domain.TransactionLine{}
	return tx, nil
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	txs := []domain.Transaction{tx}
	if err := s.attachItems(ctx, txs); err != nil {
		return nil, err
	}
	return &txs[0], nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
	`, from, to)
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE kind = $1
		ORDER BY created_at DESC, id DESC
	`, domain.KindOrder)
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 64)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) attachItems(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, len(txs))
	index := make(map[string]int, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
		index[tx.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, item_id, name, unit_price_paise, qty, category, note
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY id ASC
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var txID string
		var line domain.TransactionLine
		if err := rows.Scan(&txID, &line.ItemID, &line.Name, &line.UnitPricePaise, &line.Qty, &line.Category, &line.Note); err != nil {
			return err
		}
		if i, ok := index[txID]; ok {
			txs[i].Items = append(txs[i].Items, line)
		}
	}
	return rows.Err()
}

// UpdateOrder applies the status and payment change only while the order's
// current status is one of update.ExpectStatuses, so concurrent settlements of
// the same order cannot both succeed.
func (s *Store) UpdateOrder(ctx context.Context, update store.OrderUpdate) (*domain.Transaction, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $3,
			payment_method = $4,
			advance_paise = $5,
			balance_paise = $6,
			payment_status = $7,
			balance_method = $8,
			balance_paid_at = $9
		WHERE id = $1 AND kind = 'order' AND status = ANY($2)
	`,
		update.ID, update.ExpectStatuses, update.Status,
		update.Payment.Method, update.Payment.AdvancePaise, update.Payment.BalancePaise, update.Payment.Status,
		nullIfEmpty(update.Payment.BalanceMethod), nullTime(update.Payment.BalancePaidAt),
	)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		if _, err := s.FindTransactionByID(ctx, update.ID); err != nil {
			return nil, err
		}
		return nil, store.ErrInvalidTransition
	}
	return s.FindTransactionByID(ctx, update.ID)
}

func (s *Store) DeleteTransactions(ctx context.Context, from time.Time, to time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE created_at >= $1 AND created_at < $2
	`, from, to)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) SumRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_paise), 0)
		FROM transactions
		WHERE status = 'completed' AND kind IN ('sale', 'order', 'settlement')
	`).Scan(&total)
	return total, err
}

func (s *Store) GetCustomer(ctx context.Context, phone string) (*domain.CustomerRecord, error) {
	var record domain.CustomerRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT phone, name, visit_count, total_spent_paise, last_visit, last_note
		FROM customers
		WHERE phone = $1
	`, phone).Scan(&record.Phone, &record.Name, &record.VisitCount, &record.TotalSpentPaise, &record.LastVisit, &record.LastNote)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	record.LastVisit = record.LastVisit.UTC()
	return &record, nil
}

func (s *Store) UpsertCustomer(ctx context.Context, visit store.CustomerVisit) (*domain.CustomerRecord, error) {
	if visit.Phone == "" || visit.AmountPaise < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if visit.At.IsZero() {
		visit.At = time.Now().UTC()
	}

	var record domain.CustomerRecord
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (phone, name, visit_count, total_spent_paise, last_visit, last_note)
		VALUES ($1, COALESCE(NULLIF($2, ''), $6), 1, $3, $4, $5)
		ON CONFLICT (phone) DO UPDATE SET
			name = COALESCE(NULLIF($2, ''), customers.name),
			visit_count = customers.visit_count + 1,
			total_spent_paise = customers.total_spent_paise + EXCLUDED.total_spent_paise,
			last_visit = EXCLUDED.last_visit,
			last_note = COALESCE(NULLIF($5, ''), customers.last_note)
		RETURNING phone, name, visit_count, total_spent_paise, last_visit, last_note
	`, visit.Phone, strings.TrimSpace(visit.Name), visit.AmountPaise, visit.At, strings.TrimSpace(visit.Note), store.UnknownCustomerName).Scan(
		&record.Phone, &record.Name, &record.VisitCount, &record.TotalSpentPaise, &record.LastVisit, &record.LastNote,
	)
	if err != nil {
		return nil, err
	}
	record.LastVisit = record.LastVisit.UTC()
	return &record, nil
}

func (s *Store) GetMilestoneState(ctx context.Context) (*domain.MilestoneState, error) {
	var state domain.MilestoneState
	var celebrated []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT tracking_started_at, celebrated
		FROM milestone_state
		WHERE id = 1
	`).Scan(&state.TrackingStartedAt, &celebrated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(celebrated, &state.Celebrated); err != nil {
		return nil, err
	}
	state.TrackingStartedAt = state.TrackingStartedAt.UTC()
	return &state, nil
}

func (s *Store) SaveMilestoneState(ctx context.Context, state domain.MilestoneState) error {
	celebrated := state.Celebrated
	if celebrated == nil {
		celebrated = []int64{}
	}
	payload, err := json.Marshal(celebrated)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO milestone_state (id, tracking_started_at, celebrated)
		VALUES (1, $1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			tracking_started_at = EXCLUDED.tracking_started_at,
			celebrated = EXCLUDED.celebrated
	`, state.TrackingStartedAt, string(payload))
	return err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if username == "" || password == "" {
		return store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
