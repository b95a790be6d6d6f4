package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
)

var _ store.Repository = (*Store)(nil)

const maxTxAttempts = 3

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	Logger       *zap.Logger
}

type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func New(ctx context.Context, databaseURL string, opts Options) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 30
	}
	if opts.MaxIdleConns < 0 {
		opts.MaxIdleConns = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: opts.Logger.Named("postgres")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn in a serializable transaction, retrying the whole unit of
// work when Postgres reports a serialization failure or deadlock.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		s.logger.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx store.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

const (
	productColumns   = `id, organization_id, sku, name, base_price, active, created_at`
	variantColumns   = `id, organization_id, product_id, sku, name, price_modifier, active`
	locationColumns  = `id, organization_id, name, active, created_at`
	positionColumns  = `id, organization_id, storage_unit_id, location_id, code, is_occupied, max_weight, capacity`
	settingsColumns  = `organization_id, enable_auto_checkout, auto_checkout_time, default_timezone, default_location_id, updated_at`
	customerColumns  = `id, organization_id, name, phone, email, loyalty_points, created_at`
	memberColumns    = `id, organization_id, name, role, is_checked_in, current_attendance_log_id, current_check_in_location_id, last_check_in_time, created_at`
	userColumns      = `username, password, role, organization_id, member_id, active, created_at`
	loyaltyColumns   = `id, organization_id, customer_id, sale_id, points, transaction_type, created_at`
	auditColumns     = `id, organization_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at`
	stockColumns     = `organization_id, product_id, variant_id, location_id, current_stock, updated_at`

	attendanceColumns = `id, organization_id, member_id, check_in_time, check_out_time, check_in_location_id,
		check_out_location_id, duration_minutes, is_auto_checkout, notes`
	batchColumns = `id, organization_id, product_id, variant_id, location_id, position_id, source_batch_id,
		initial_quantity, current_quantity, purchase_price, space_occupied, expiry_date, received_at, created_at`
	movementColumns = `id, organization_id, batch_id, product_id, variant_id, location_id, movement_type,
		quantity, quantity_before, quantity_after, reference, member_id, created_at`
	saleColumns = `id, organization_id, sale_number, member_id, customer_id, location_id, payment_method,
		payment_status, total_amount, discount_amount, sale_discount_amount, tax_amount, final_amount,
		notes, cash_drawer_id, created_at`
	saleItemColumns = `id, sale_id, line_index, product_id, variant_id, sku, stock_batch_id, quantity,
		unit_price, unit_cost, discount_amount, tax_rate, tax_amount, total_amount`
)

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		t := tx.(*pgTx)
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO products (`+productColumns+`)
			VALUES (:id, :organization_id, :sku, :name, :base_price, :active, :created_at)
		`, product); err != nil {
			if isUniqueViolation(err) {
				return store.Conflict("sku %s already exists", product.SKU)
			}
			return err
		}
		for _, v := range product.Variants {
			if _, err := t.tx.NamedExecContext(ctx, `
				INSERT INTO product_variants (`+variantColumns+`)
				VALUES (:id, :organization_id, :product_id, :sku, :name, :price_modifier, :active)
			`, v); err != nil {
				if isUniqueViolation(err) {
					return store.Conflict("sku %s already exists", v.SKU)
				}
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListProducts(ctx context.Context, organizationID string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 64)
	if err := s.db.SelectContext(ctx, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE organization_id = $1
		ORDER BY sku
	`, organizationID); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	variants := make([]domain.ProductVariant, 0, 32)
	if err := s.db.SelectContext(ctx, &variants, `
		SELECT `+variantColumns+`
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY sku
	`, ids); err != nil {
		return nil, err
	}
	byProduct := make(map[string][]domain.ProductVariant, len(products))
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	for i := range products {
		products[i].Variants = byProduct[products[i].ID]
		if products[i].Variants == nil {
			products[i].Variants = []domain.ProductVariant{}
		}
	}
	return products, nil
}

func (s *Store) CreateLocation(ctx context.Context, location domain.Location) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO locations (`+locationColumns+`)
		VALUES (:id, :organization_id, :name, :active, :created_at)
	`, location)
	if isUniqueViolation(err) {
		return store.Conflict("location %s already exists", location.ID)
	}
	return err
}

func (s *Store) ListLocations(ctx context.Context, organizationID string) ([]domain.Location, error) {
	locations := make([]domain.Location, 0, 8)
	err := s.db.SelectContext(ctx, &locations, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE organization_id = $1
		ORDER BY name
	`, organizationID)
	return locations, err
}

func (s *Store) CreateStorageUnit(ctx context.Context, unit domain.StorageUnit) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		t := tx.(*pgTx)
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO storage_units (id, organization_id, location_id, name, unit_type, created_at)
			VALUES (:id, :organization_id, :location_id, :name, :unit_type, :created_at)
		`, unit); err != nil {
			return err
		}
		for _, p := range unit.Positions {
			if _, err := t.tx.NamedExecContext(ctx, `
				INSERT INTO storage_positions (`+positionColumns+`)
				VALUES (:id, :organization_id, :storage_unit_id, :location_id, :code, :is_occupied, :max_weight, :capacity)
			`, p); err != nil {
				if isUniqueViolation(err) {
					return store.Conflict("position %s already exists", p.Code)
				}
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListStoragePositions(ctx context.Context, organizationID string, locationID string) ([]domain.StoragePosition, error) {
	positions := make([]domain.StoragePosition, 0, 32)
	err := s.db.SelectContext(ctx, &positions, `
		SELECT `+positionColumns+`
		FROM storage_positions
		WHERE organization_id = $1 AND ($2 = '' OR location_id = $2)
		ORDER BY storage_unit_id, code
	`, organizationID, locationID)
	return positions, err
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (:id, :organization_id, :name, :phone, :email, :loyalty_points, :created_at)
	`, customer)
	return err
}

func (s *Store) ListCustomers(ctx context.Context, organizationID string, limit int) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, 32)
	err := s.db.SelectContext(ctx, &customers, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE organization_id = $1
		ORDER BY name
		LIMIT NULLIF($2::int, 0)
	`, organizationID, limit)
	return customers, err
}

func (s *Store) CreateMember(ctx context.Context, member domain.Member, user domain.UserAccount) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		t := tx.(*pgTx)
		if _, err := t.tx.NamedExecContext(ctx, `
			INSERT INTO members (`+memberColumns+`)
			VALUES (:id, :organization_id, :name, :role, :is_checked_in, :current_attendance_log_id,
				:current_check_in_location_id, :last_check_in_time, :created_at)
		`, member); err != nil {
			return err
		}
		return insertUser(ctx, t.tx, user)
	})
}

func (s *Store) GetMember(ctx context.Context, organizationID string, memberID string) (*domain.Member, error) {
	return getOne[domain.Member](ctx, s.db, "member", memberID, `
		SELECT `+memberColumns+`
		FROM members
		WHERE organization_id = $1 AND id = $2
	`, organizationID, memberID)
}

func (s *Store) ListBatches(ctx context.Context, filter store.BatchFilter) ([]domain.StockBatch, error) {
	batches := make([]domain.StockBatch, 0, 32)
	err := s.db.SelectContext(ctx, &batches, `
		SELECT `+batchColumns+`
		FROM stock_batches
		WHERE organization_id = $1
			AND ($2 = '' OR product_id = $2)
			AND ($3 = '' OR COALESCE(variant_id, '') = $3)
			AND ($4 = '' OR location_id = $4)
			AND ($5 OR current_quantity > 0)
		ORDER BY received_at, id
		LIMIT NULLIF($6::int, 0)
	`, filter.OrganizationID, filter.ProductID, filter.VariantID, filter.LocationID, filter.IncludeDepleted, filter.Limit)
	return batches, err
}

func (s *Store) ListVariantStock(ctx context.Context, organizationID string, locationID string) ([]domain.VariantStock, error) {
	totals := make([]domain.VariantStock, 0, 32)
	err := s.db.SelectContext(ctx, &totals, `
		SELECT `+stockColumns+`
		FROM variant_stocks
		WHERE organization_id = $1 AND ($2 = '' OR location_id = $2)
		ORDER BY location_id, product_id, variant_id
	`, organizationID, locationID)
	return totals, err
}

func (s *Store) ListMovements(ctx context.Context, organizationID string, batchID string) ([]domain.StockMovement, error) {
	movements := make([]domain.StockMovement, 0, 8)
	err := s.db.SelectContext(ctx, &movements, `
		SELECT `+movementColumns+`
		FROM stock_movements
		WHERE organization_id = $1 AND batch_id = $2
		ORDER BY seq
	`, organizationID, batchID)
	return movements, err
}

func (s *Store) ListSales(ctx context.Context, filter store.SaleFilter) ([]domain.Sale, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.PaymentMethod != "" {
		add("payment_method = $%d", filter.PaymentMethod)
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", filter.PaymentStatus)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		where = append(where, fmt.Sprintf("(sale_number ILIKE $%d OR notes ILIKE $%d)", len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT count(*) FROM sales WHERE `+clause, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, max(filter.Offset, 0), filter.Limit)
	sales := make([]domain.Sale, 0, 32)
	if err := s.db.SelectContext(ctx, &sales, fmt.Sprintf(`
		SELECT `+saleColumns+`
		FROM sales
		WHERE %s
		ORDER BY created_at DESC, id DESC
		OFFSET $%d LIMIT NULLIF($%d::int, 0)
	`, clause, len(args)-1, len(args)), args...); err != nil {
		return nil, 0, err
	}
	if err := s.hydrateSales(ctx, sales); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func (s *Store) GetSale(ctx context.Context, organizationID string, saleID string) (*domain.Sale, error) {
	sale, err := getOne[domain.Sale](ctx, s.db, "sale", saleID, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE organization_id = $1 AND id = $2
	`, organizationID, saleID)
	if err != nil {
		return nil, err
	}
	sales := []domain.Sale{*sale}
	if err := s.hydrateSales(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

// hydrateSales loads items, customers and members for a page of sales with
// one query per relation.
func (s *Store) hydrateSales(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	saleIDs := make([]string, 0, len(sales))
	customerIDs := make([]string, 0, len(sales))
	memberIDs := make([]string, 0, len(sales))
	for _, sale := range sales {
		saleIDs = append(saleIDs, sale.ID)
		memberIDs = append(memberIDs, sale.MemberID)
		if sale.CustomerID != nil {
			customerIDs = append(customerIDs, *sale.CustomerID)
		}
	}

	items := make([]domain.SaleItem, 0, len(sales)*2)
	if err := s.db.SelectContext(ctx, &items, `
		SELECT `+saleItemColumns+`
		FROM sale_items
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, line_index, id
	`, saleIDs); err != nil {
		return err
	}
	itemsBySale := make(map[string][]domain.SaleItem, len(sales))
	for _, item := range items {
		itemsBySale[item.SaleID] = append(itemsBySale[item.SaleID], item)
	}

	customers := make(map[string]domain.Customer, len(customerIDs))
	if len(customerIDs) > 0 {
		rows := make([]domain.Customer, 0, len(customerIDs))
		if err := s.db.SelectContext(ctx, &rows, `
			SELECT `+customerColumns+` FROM customers WHERE id = ANY($1)
		`, customerIDs); err != nil {
			return err
		}
		for _, c := range rows {
			customers[c.ID] = c
		}
	}

	members := make(map[string]domain.Member, len(memberIDs))
	rows := make([]domain.Member, 0, len(memberIDs))
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+memberColumns+` FROM members WHERE id = ANY($1)
	`, memberIDs); err != nil {
		return err
	}
	for _, m := range rows {
		members[m.ID] = m
	}

	for i := range sales {
		sales[i].Items = itemsBySale[sales[i].ID]
		if sales[i].Items == nil {
			sales[i].Items = []domain.SaleItem{}
		}
		if sales[i].CustomerID != nil {
			if c, ok := customers[*sales[i].CustomerID]; ok {
				sales[i].Customer = &c
			}
		}
		if m, ok := members[sales[i].MemberID]; ok {
			sales[i].Member = &m
		}
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context, organizationID string) (*domain.OrganizationSettings, error) {
	return getSettings(ctx, s.db, organizationID)
}

func (s *Store) ListAutoCheckoutSettings(ctx context.Context, afterOrganizationID string, limit int) ([]domain.OrganizationSettings, error) {
	settings := make([]domain.OrganizationSettings, 0, 16)
	err := s.db.SelectContext(ctx, &settings, `
		SELECT `+settingsColumns+`
		FROM organization_settings
		WHERE enable_auto_checkout AND auto_checkout_time IS NOT NULL AND organization_id > $1
		ORDER BY organization_id
		LIMIT NULLIF($2::int, 0)
	`, afterOrganizationID, limit)
	return settings, err
}

func (s *Store) ListOpenAttendance(ctx context.Context, organizationID string, afterID string, limit int) ([]domain.AttendanceLog, error) {
	logs := make([]domain.AttendanceLog, 0, 16)
	err := s.db.SelectContext(ctx, &logs, `
		SELECT `+attendanceColumns+`
		FROM attendance_logs
		WHERE organization_id = $1 AND check_out_time IS NULL AND id > $2
		ORDER BY id
		LIMIT NULLIF($3::int, 0)
	`, organizationID, afterID, limit)
	return logs, err
}

func (s *Store) ListAttendanceLogs(ctx context.Context, organizationID string, memberID string, limit int) ([]domain.AttendanceLog, error) {
	logs := make([]domain.AttendanceLog, 0, 16)
	err := s.db.SelectContext(ctx, &logs, `
		SELECT `+attendanceColumns+`
		FROM attendance_logs
		WHERE organization_id = $1 AND ($2 = '' OR member_id = $2)
		ORDER BY check_in_time DESC, id DESC
		LIMIT NULLIF($3::int, 0)
	`, organizationID, memberID, limit)
	return logs, err
}

func (s *Store) ListLoyaltyTransactions(ctx context.Context, organizationID string, customerID string) ([]domain.LoyaltyTransaction, error) {
	entries := make([]domain.LoyaltyTransaction, 0, 8)
	err := s.db.SelectContext(ctx, &entries, `
		SELECT `+loyaltyColumns+`
		FROM loyalty_transactions
		WHERE organization_id = $1 AND customer_id = $2
		ORDER BY seq
	`, organizationID, customerID)
	return entries, err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return insertAuditLog(ctx, s.db, entry)
}

func (s *Store) ListAuditLogs(ctx context.Context, organizationID string, limit int) ([]domain.AuditLog, error) {
	entries := make([]domain.AuditLog, 0, max(limit, 0))
	err := s.db.SelectContext(ctx, &entries, `
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE organization_id = $1
		ORDER BY seq DESC
		LIMIT NULLIF($2::int, 0)
	`, organizationID, limit)
	return entries, err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	return insertUser(ctx, s.db, user)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 16)
	if err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+`
		FROM app_users
		ORDER BY username ASC
	`); err != nil {
		return nil, err
	}
	for i := range users {
		users[i].CreatedAt = users[i].CreatedAt.UTC()
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.Invalid("username and password are required")
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
		return store.NotFound("user", username)
	}
	return nil
}

// pgTx implements store.Tx on a serializable sqlx transaction. Lock* reads
// use FOR UPDATE so concurrent units of work on the same rows queue up.
type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) GetProduct(ctx context.Context, organizationID string, productID string) (*domain.Product, error) {
	product, err := getOne[domain.Product](ctx, t.tx, "product", productID, `
		SELECT `+productColumns+`
		FROM products
		WHERE organization_id = $1 AND id = $2
	`, organizationID, productID)
	if err != nil {
		return nil, err
	}
	product.Variants = make([]domain.ProductVariant, 0, 4)
	if err := t.tx.SelectContext(ctx, &product.Variants, `
		SELECT `+variantColumns+`
		FROM product_variants
		WHERE product_id = $1
		ORDER BY sku
	`, product.ID); err != nil {
		return nil, err
	}
	return product, nil
}

func (t *pgTx) GetVariant(ctx context.Context, organizationID string, variantID string) (*domain.ProductVariant, error) {
	return getOne[domain.ProductVariant](ctx, t.tx, "variant", variantID, `
		SELECT `+variantColumns+`
		FROM product_variants
		WHERE organization_id = $1 AND id = $2
	`, organizationID, variantID)
}

func (t *pgTx) GetLocation(ctx context.Context, organizationID string, locationID string) (*domain.Location, error) {
	return getOne[domain.Location](ctx, t.tx, "location", locationID, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE organization_id = $1 AND id = $2 AND active
	`, organizationID, locationID)
}

func (t *pgTx) GetSettings(ctx context.Context, organizationID string) (*domain.OrganizationSettings, error) {
	return getSettings(ctx, t.tx, organizationID)
}

func (t *pgTx) SaveSettings(ctx context.Context, settings domain.OrganizationSettings) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO organization_settings (`+settingsColumns+`)
		VALUES (:organization_id, :enable_auto_checkout, :auto_checkout_time, :default_timezone, :default_location_id, :updated_at)
		ON CONFLICT (organization_id)
		DO UPDATE SET
			enable_auto_checkout = EXCLUDED.enable_auto_checkout,
			auto_checkout_time = EXCLUDED.auto_checkout_time,
			default_timezone = EXCLUDED.default_timezone,
			default_location_id = EXCLUDED.default_location_id,
			updated_at = EXCLUDED.updated_at
	`, settings)
	return err
}

func (t *pgTx) LockPosition(ctx context.Context, organizationID string, positionID string) (*domain.StoragePosition, error) {
	return getOne[domain.StoragePosition](ctx, t.tx, "storage position", positionID, `
		SELECT `+positionColumns+`
		FROM storage_positions
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE
	`, organizationID, positionID)
}

func (t *pgTx) SetPositionOccupied(ctx context.Context, positionID string, occupied bool) error {
	return t.execOne(ctx, "storage position", positionID, `
		UPDATE storage_positions SET is_occupied = $2 WHERE id = $1
	`, positionID, occupied)
}

func (t *pgTx) LockBatch(ctx context.Context, organizationID string, batchID string) (*domain.StockBatch, error) {
	return getOne[domain.StockBatch](ctx, t.tx, "batch", batchID, `
		SELECT `+batchColumns+`
		FROM stock_batches
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE
	`, organizationID, batchID)
}

// LockAvailableBatches locks in id order so two depletions of the same key
// always acquire row locks in the same sequence.
func (t *pgTx) LockAvailableBatches(ctx context.Context, key domain.StockKey) ([]domain.StockBatch, error) {
	batches := make([]domain.StockBatch, 0, 4)
	err := t.tx.SelectContext(ctx, &batches, `
		SELECT `+batchColumns+`
		FROM stock_batches
		WHERE organization_id = $1
			AND product_id = $2
			AND COALESCE(variant_id, '') = $3
			AND location_id = $4
			AND current_quantity > 0
		ORDER BY id
		FOR UPDATE
	`, key.OrganizationID, key.ProductID, key.VariantID, key.LocationID)
	return batches, err
}

func (t *pgTx) InsertBatch(ctx context.Context, batch domain.StockBatch) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO stock_batches (`+batchColumns+`)
		VALUES (:id, :organization_id, :product_id, :variant_id, :location_id, :position_id, :source_batch_id,
			:initial_quantity, :current_quantity, :purchase_price, :space_occupied, :expiry_date, :received_at, :created_at)
	`, batch)
	if isUniqueViolation(err) {
		return store.Conflict("batch %s already exists", batch.ID)
	}
	return err
}

func (t *pgTx) UpdateBatch(ctx context.Context, batch domain.StockBatch) error {
	return t.execOne(ctx, "batch", batch.ID, `
		UPDATE stock_batches
		SET location_id = $2, position_id = $3, current_quantity = $4, space_occupied = $5
		WHERE id = $1
	`, batch.ID, batch.LocationID, batch.PositionID, batch.CurrentQuantity, batch.SpaceOccupied)
}

func (t *pgTx) AdjustStock(ctx context.Context, key domain.StockKey, delta int, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO variant_stocks (`+stockColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, product_id, variant_id, location_id)
		DO UPDATE SET
			current_stock = variant_stocks.current_stock + EXCLUDED.current_stock,
			updated_at = EXCLUDED.updated_at
	`, key.OrganizationID, key.ProductID, key.VariantID, key.LocationID, delta, at)
	if isCheckViolation(err) {
		return fmt.Errorf("stock total for product %s variant %q at %s would become negative: %w", key.ProductID, key.VariantID, key.LocationID, err)
	}
	return err
}

func (t *pgTx) InsertMovement(ctx context.Context, movement domain.StockMovement) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO stock_movements (`+movementColumns+`)
		VALUES (:id, :organization_id, :batch_id, :product_id, :variant_id, :location_id, :movement_type,
			:quantity, :quantity_before, :quantity_after, :reference, :member_id, :created_at)
	`, movement)
	return err
}

func (t *pgTx) LockCustomer(ctx context.Context, organizationID string, customerID string) (*domain.Customer, error) {
	return getOne[domain.Customer](ctx, t.tx, "customer", customerID, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE
	`, organizationID, customerID)
}

func (t *pgTx) UpdateCustomerPoints(ctx context.Context, customerID string, points int) error {
	return t.execOne(ctx, "customer", customerID, `
		UPDATE customers SET loyalty_points = $2 WHERE id = $1
	`, customerID, points)
}

func (t *pgTx) InsertLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO loyalty_transactions (`+loyaltyColumns+`)
		VALUES (:id, :organization_id, :customer_id, :sale_id, :points, :transaction_type, :created_at)
	`, entry)
	return err
}

func (t *pgTx) InsertSale(ctx context.Context, sale domain.Sale) error {
	if _, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES (:id, :organization_id, :sale_number, :member_id, :customer_id, :location_id, :payment_method,
			:payment_status, :total_amount, :discount_amount, :sale_discount_amount, :tax_amount, :final_amount,
			:notes, :cash_drawer_id, :created_at)
	`, sale); err != nil {
		if isUniqueViolation(err) {
			return store.Conflict("sale number %s already exists", sale.SaleNumber)
		}
		return err
	}
	if len(sale.Items) == 0 {
		return nil
	}
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO sale_items (`+saleItemColumns+`)
		VALUES (:id, :sale_id, :line_index, :product_id, :variant_id, :sku, :stock_batch_id, :quantity,
			:unit_price, :unit_cost, :discount_amount, :tax_rate, :tax_amount, :total_amount)
	`, sale.Items)
	return err
}

func (t *pgTx) LockMember(ctx context.Context, organizationID string, memberID string) (*domain.Member, error) {
	return getOne[domain.Member](ctx, t.tx, "member", memberID, `
		SELECT `+memberColumns+`
		FROM members
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE
	`, organizationID, memberID)
}

func (t *pgTx) UpdateMember(ctx context.Context, member domain.Member) error {
	return t.execOne(ctx, "member", member.ID, `
		UPDATE members
		SET is_checked_in = $2,
			current_attendance_log_id = $3,
			current_check_in_location_id = $4,
			last_check_in_time = $5
		WHERE id = $1
	`, member.ID, member.IsCheckedIn, member.CurrentAttendanceLogID, member.CurrentCheckInLocationID, member.LastCheckInTime)
}

func (t *pgTx) GetAttendanceLog(ctx context.Context, organizationID string, logID string) (*domain.AttendanceLog, error) {
	return getOne[domain.AttendanceLog](ctx, t.tx, "attendance log", logID, `
		SELECT `+attendanceColumns+`
		FROM attendance_logs
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE
	`, organizationID, logID)
}

func (t *pgTx) InsertAttendanceLog(ctx context.Context, entry domain.AttendanceLog) error {
	_, err := t.tx.NamedExecContext(ctx, `
		INSERT INTO attendance_logs (`+attendanceColumns+`)
		VALUES (:id, :organization_id, :member_id, :check_in_time, :check_out_time, :check_in_location_id,
			:check_out_location_id, :duration_minutes, :is_auto_checkout, :notes)
	`, entry)
	if isUniqueViolation(err) {
		return store.ErrAlreadyCheckedIn
	}
	return err
}

func (t *pgTx) UpdateAttendanceLog(ctx context.Context, entry domain.AttendanceLog) error {
	return t.execOne(ctx, "attendance log", entry.ID, `
		UPDATE attendance_logs
		SET check_out_time = $2,
			check_out_location_id = $3,
			duration_minutes = $4,
			is_auto_checkout = $5,
			notes = $6
		WHERE id = $1
	`, entry.ID, entry.CheckOutTime, entry.CheckOutLocationID, entry.DurationMinutes, entry.IsAutoCheckout, entry.Notes)
}

func (t *pgTx) InsertAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return insertAuditLog(ctx, t.tx, entry)
}

func (t *pgTx) execOne(ctx context.Context, entity string, id string, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound(entity, id)
	}
	return nil
}

func getOne[T any](ctx context.Context, q sqlx.QueryerContext, entity string, id string, query string, args ...any) (*T, error) {
	var out T
	if err := sqlx.GetContext(ctx, q, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NotFound(entity, id)
		}
		return nil, err
	}
	return &out, nil
}

func getSettings(ctx context.Context, q sqlx.QueryerContext, organizationID string) (*domain.OrganizationSettings, error) {
	return getOne[domain.OrganizationSettings](ctx, q, "organization settings", organizationID, `
		SELECT `+settingsColumns+`
		FROM organization_settings
		WHERE organization_id = $1
	`, organizationID)
}

func insertUser(ctx context.Context, e sqlx.ExtContext, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.Invalid("username and password are required")
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO app_users (username, password, role, organization_id, member_id, active, created_at, updated_at)
		VALUES (:username, :password, :role, :organization_id, :member_id, :active, :created_at, now())
	`, user)
	if isUniqueViolation(err) {
		return store.Conflict("username %s already exists", user.Username)
	}
	return err
}

func insertAuditLog(ctx context.Context, e sqlx.ExtContext, entry domain.AuditLog) error {
	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES (:id, :organization_id, :actor_username, :actor_role, :action, :entity_type, :entity_id, :detail, :created_at)
	`, entry)
	return err
}

func escapeLike(val string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(val)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return err != nil && pgCode(err) == pgerrcode.UniqueViolation
}

func isCheckViolation(err error) bool {
	return err != nil && pgCode(err) == pgerrcode.CheckViolation
}

func isRetryable(err error) bool {
	switch pgCode(err) {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}
