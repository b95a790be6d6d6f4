package memory

import (
	"os"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
)

const (
	DemoOrganizationID = "org-demo"
	DemoMainLocationID = "loc-main"
	DemoWarehouseID    = "loc-warehouse"
	DemoAdminMemberID  = "mem-admin"
	DemoCashierID      = "mem-cashier"
)

// seedUsers builds the demo accounts. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD; when unset the dev defaults
// are used and a warning is logged. Postgres deployments never call this.
func seedUsers(logger *zap.Logger, now time.Time) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		memberID string
	}{
		{"admin", adminPwd, domain.RoleAdmin, DemoAdminMemberID},
		{"cashier", cashierPwd, domain.RoleCashier, DemoCashierID},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			logger.Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:       u.username,
			Password:       string(hash),
			Role:           u.role,
			OrganizationID: DemoOrganizationID,
			MemberID:       u.memberID,
			Active:         true,
			CreatedAt:      now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store holding one demo organization with two
// locations, shelving, a small catalog with stock, a customer and staff.
func NewSeeded(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()
	st := newState()

	checkoutAt := "18:00"
	mainLocation := DemoMainLocationID
	st.settings[DemoOrganizationID] = domain.OrganizationSettings{
		OrganizationID:     DemoOrganizationID,
		EnableAutoCheckout: true,
		AutoCheckoutTime:   &checkoutAt,
		DefaultTimezone:    "Africa/Nairobi",
		DefaultLocationID:  &mainLocation,
		UpdatedAt:          now,
	}

	for _, loc := range []domain.Location{
		{ID: DemoMainLocationID, Name: "Main Store"},
		{ID: DemoWarehouseID, Name: "Warehouse"},
	} {
		loc.OrganizationID = DemoOrganizationID
		loc.Active = true
		loc.CreatedAt = now
		st.locations[loc.ID] = loc
	}

	units := []struct {
		id, location, name, unitType string
		codes                        []string
	}{
		{"unit-shelf-a", DemoMainLocationID, "Shelf A", "SHELF", []string{"A1", "A2", "A3", "A4"}},
		{"unit-rack-w", DemoWarehouseID, "Rack W", "RACK", []string{"W1", "W2", "W3"}},
	}
	for _, u := range units {
		st.units[u.id] = domain.StorageUnit{
			ID:             u.id,
			OrganizationID: DemoOrganizationID,
			LocationID:     u.location,
			Name:           u.name,
			UnitType:       u.unitType,
			CreatedAt:      now,
		}
		for _, code := range u.codes {
			id := "pos-" + code
			st.positions[id] = domain.StoragePosition{
				ID:             id,
				OrganizationID: DemoOrganizationID,
				StorageUnitID:  u.id,
				LocationID:     u.location,
				Code:           code,
				MaxWeight:      decimal.NewFromInt(500),
			}
		}
	}

	products := []domain.Product{
		{ID: "prod-rice", SKU: "RICE-2KG", Name: "Pishori Rice 2kg", BasePrice: decimal.RequireFromString("320.00")},
		{ID: "prod-milk", SKU: "MILK-500ML", Name: "Fresh Milk 500ml", BasePrice: decimal.RequireFromString("65.00")},
		{ID: "prod-tee", SKU: "TEE", Name: "Cotton T-Shirt", BasePrice: decimal.RequireFromString("850.00")},
	}
	for _, p := range products {
		p.OrganizationID = DemoOrganizationID
		p.Active = true
		p.CreatedAt = now
		st.products[p.ID] = p
	}
	for _, v := range []domain.ProductVariant{
		{ID: "var-tee-m", ProductID: "prod-tee", SKU: "TEE-M", Name: "Medium", PriceModifier: decimal.Zero},
		{ID: "var-tee-xl", ProductID: "prod-tee", SKU: "TEE-XL", Name: "Extra Large", PriceModifier: decimal.RequireFromString("100.00")},
	} {
		v.OrganizationID = DemoOrganizationID
		v.Active = true
		st.variants[v.ID] = v
	}

	milkExpiry := now.AddDate(0, 0, 7).Truncate(24 * time.Hour)
	st.seedBatch("batch-seed-rice", "prod-rice", "", DemoMainLocationID, "pos-A1", 40, "250.00", nil, now.AddDate(0, 0, -10))
	st.seedBatch("batch-seed-milk", "prod-milk", "", DemoMainLocationID, "pos-A2", 24, "48.50", &milkExpiry, now.AddDate(0, 0, -1))
	st.seedBatch("batch-seed-tee-m", "prod-tee", "var-tee-m", DemoWarehouseID, "pos-W1", 15, "520.00", nil, now.AddDate(0, 0, -30))
	st.seedBatch("batch-seed-tee-xl", "prod-tee", "var-tee-xl", DemoWarehouseID, "pos-W2", 8, "560.00", nil, now.AddDate(0, 0, -30))

	st.customers["cust-wanjiku"] = domain.Customer{
		ID:             "cust-wanjiku",
		OrganizationID: DemoOrganizationID,
		Name:           "Grace Wanjiku",
		Phone:          "+254700000001",
		CreatedAt:      now,
	}

	for _, m := range []domain.Member{
		{ID: DemoAdminMemberID, Name: "Store Admin", Role: domain.RoleAdmin},
		{ID: DemoCashierID, Name: "Front Cashier", Role: domain.RoleCashier},
	} {
		m.OrganizationID = DemoOrganizationID
		m.CreatedAt = now
		st.members[m.ID] = m
	}

	st.users = seedUsers(logger, now)

	return &Store{st: st}
}

func (st *state) seedBatch(id, productID, variantID, locationID, positionID string, qty int, cost string, expiry *time.Time, receivedAt time.Time) {
	batch := domain.StockBatch{
		ID:              id,
		OrganizationID:  DemoOrganizationID,
		ProductID:       productID,
		LocationID:      locationID,
		InitialQuantity: qty,
		CurrentQuantity: qty,
		PurchasePrice:   decimal.RequireFromString(cost),
		SpaceOccupied:   decimal.NewFromInt(int64(qty)),
		ExpiryDate:      expiry,
		ReceivedAt:      receivedAt,
		CreatedAt:       receivedAt,
	}
	if variantID != "" {
		batch.VariantID = &variantID
	}
	if positionID != "" {
		batch.PositionID = &positionID
		position := st.positions[positionID]
		position.IsOccupied = true
		st.positions[positionID] = position
	}
	st.batches[id] = batch

	key := batch.Key()
	total := st.stock[key]
	total.StockKey = key
	total.CurrentStock += qty
	total.UpdatedAt = receivedAt
	st.stock[key] = total
}
