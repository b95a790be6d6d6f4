package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
)

var _ store.Repository = (*Store)(nil)

// Store keeps all tenants in process memory. InTx runs the callback against
// a copy of the state and swaps it in only when the callback succeeds, so a
// failed unit of work leaves nothing behind.
type Store struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	settings    map[string]domain.OrganizationSettings
	locations   map[string]domain.Location
	units       map[string]domain.StorageUnit
	positions   map[string]domain.StoragePosition
	products    map[string]domain.Product
	variants    map[string]domain.ProductVariant
	batches     map[string]domain.StockBatch
	stock       map[domain.StockKey]domain.VariantStock
	movements   []domain.StockMovement
	customers   map[string]domain.Customer
	loyalty     []domain.LoyaltyTransaction
	sales       map[string]domain.Sale
	saleNumbers map[string]string
	members     map[string]domain.Member
	attendance  map[string]domain.AttendanceLog
	auditLogs   []domain.AuditLog
	users       map[string]domain.UserAccount
}

func newState() *state {
	return &state{
		settings:    make(map[string]domain.OrganizationSettings),
		locations:   make(map[string]domain.Location),
		units:       make(map[string]domain.StorageUnit),
		positions:   make(map[string]domain.StoragePosition),
		products:    make(map[string]domain.Product),
		variants:    make(map[string]domain.ProductVariant),
		batches:     make(map[string]domain.StockBatch),
		stock:       make(map[domain.StockKey]domain.VariantStock),
		movements:   make([]domain.StockMovement, 0, 128),
		customers:   make(map[string]domain.Customer),
		loyalty:     make([]domain.LoyaltyTransaction, 0, 32),
		sales:       make(map[string]domain.Sale),
		saleNumbers: make(map[string]string),
		members:     make(map[string]domain.Member),
		attendance:  make(map[string]domain.AttendanceLog),
		auditLogs:   make([]domain.AuditLog, 0, 128),
		users:       make(map[string]domain.UserAccount),
	}
}

func (st *state) clone() *state {
	return &state{
		settings:    maps.Clone(st.settings),
		locations:   maps.Clone(st.locations),
		units:       maps.Clone(st.units),
		positions:   maps.Clone(st.positions),
		products:    maps.Clone(st.products),
		variants:    maps.Clone(st.variants),
		batches:     maps.Clone(st.batches),
		stock:       maps.Clone(st.stock),
		movements:   slices.Clone(st.movements),
		customers:   maps.Clone(st.customers),
		loyalty:     slices.Clone(st.loyalty),
		sales:       maps.Clone(st.sales),
		saleNumbers: maps.Clone(st.saleNumbers),
		members:     maps.Clone(st.members),
		attendance:  maps.Clone(st.attendance),
		auditLogs:   slices.Clone(st.auditLogs),
		users:       maps.Clone(st.users),
	}
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.st.products {
		if existing.OrganizationID == product.OrganizationID && strings.EqualFold(existing.SKU, product.SKU) {
			return store.Conflict("sku %s already exists", product.SKU)
		}
	}
	for _, v := range product.Variants {
		for _, existing := range s.st.variants {
			if existing.OrganizationID == product.OrganizationID && strings.EqualFold(existing.SKU, v.SKU) {
				return store.Conflict("sku %s already exists", v.SKU)
			}
		}
	}

	for _, v := range product.Variants {
		s.st.variants[v.ID] = v
	}
	product.Variants = nil
	s.st.products[product.ID] = product
	return nil
}

func (s *Store) ListProducts(_ context.Context, organizationID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		if p.OrganizationID != organizationID {
			continue
		}
		products = append(products, s.st.withVariants(p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int { return cmp.Compare(a.SKU, b.SKU) })
	return products, nil
}

func (s *Store) CreateLocation(_ context.Context, location domain.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.locations[location.ID] = location
	return nil
}

func (s *Store) ListLocations(_ context.Context, organizationID string) ([]domain.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	locations := make([]domain.Location, 0, len(s.st.locations))
	for _, l := range s.st.locations {
		if l.OrganizationID == organizationID {
			locations = append(locations, l)
		}
	}
	slices.SortFunc(locations, func(a, b domain.Location) int { return cmp.Compare(a.Name, b.Name) })
	return locations, nil
}

func (s *Store) CreateStorageUnit(_ context.Context, unit domain.StorageUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range unit.Positions {
		for _, existing := range s.st.positions {
			if existing.StorageUnitID == unit.ID && existing.Code == p.Code {
				return store.Conflict("position %s already exists", p.Code)
			}
		}
		s.st.positions[p.ID] = p
	}
	unit.Positions = nil
	s.st.units[unit.ID] = unit
	return nil
}

func (s *Store) ListStoragePositions(_ context.Context, organizationID string, locationID string) ([]domain.StoragePosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]domain.StoragePosition, 0, len(s.st.positions))
	for _, p := range s.st.positions {
		if p.OrganizationID != organizationID {
			continue
		}
		if locationID != "" && p.LocationID != locationID {
			continue
		}
		positions = append(positions, p)
	}
	slices.SortFunc(positions, func(a, b domain.StoragePosition) int {
		return cmp.Or(cmp.Compare(a.StorageUnitID, b.StorageUnitID), cmp.Compare(a.Code, b.Code))
	})
	return positions, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.customers[customer.ID] = customer
	return nil
}

func (s *Store) ListCustomers(_ context.Context, organizationID string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		if c.OrganizationID == organizationID {
			customers = append(customers, c)
		}
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int { return cmp.Compare(a.Name, b.Name) })
	if limit > 0 && len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) CreateMember(_ context.Context, member domain.Member, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.users[user.Username]; exists {
		return store.Conflict("username %s already exists", user.Username)
	}
	s.st.members[member.ID] = member
	s.st.users[user.Username] = user
	return nil
}

func (s *Store) GetMember(_ context.Context, organizationID string, memberID string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.st.members[memberID]
	if !ok || member.OrganizationID != organizationID {
		return nil, store.NotFound("member", memberID)
	}
	return &member, nil
}

func (s *Store) ListBatches(_ context.Context, filter store.BatchFilter) ([]domain.StockBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batches := make([]domain.StockBatch, 0, 32)
	for _, b := range s.st.batches {
		if b.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.ProductID != "" && b.ProductID != filter.ProductID {
			continue
		}
		if filter.VariantID != "" && b.Key().VariantID != filter.VariantID {
			continue
		}
		if filter.LocationID != "" && b.LocationID != filter.LocationID {
			continue
		}
		if !filter.IncludeDepleted && b.CurrentQuantity == 0 {
			continue
		}
		batches = append(batches, b)
	}
	slices.SortFunc(batches, func(a, b domain.StockBatch) int {
		return cmp.Or(a.ReceivedAt.Compare(b.ReceivedAt), cmp.Compare(a.ID, b.ID))
	})
	if filter.Limit > 0 && len(batches) > filter.Limit {
		batches = batches[:filter.Limit]
	}
	return batches, nil
}

func (s *Store) ListVariantStock(_ context.Context, organizationID string, locationID string) ([]domain.VariantStock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make([]domain.VariantStock, 0, len(s.st.stock))
	for key, total := range s.st.stock {
		if key.OrganizationID != organizationID {
			continue
		}
		if locationID != "" && key.LocationID != locationID {
			continue
		}
		totals = append(totals, total)
	}
	slices.SortFunc(totals, func(a, b domain.VariantStock) int {
		return cmp.Or(
			cmp.Compare(a.LocationID, b.LocationID),
			cmp.Compare(a.ProductID, b.ProductID),
			cmp.Compare(a.VariantID, b.VariantID),
		)
	})
	return totals, nil
}

func (s *Store) ListMovements(_ context.Context, organizationID string, batchID string) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := make([]domain.StockMovement, 0, 8)
	for _, m := range s.st.movements {
		if m.OrganizationID == organizationID && m.BatchID == batchID {
			movements = append(movements, m)
		}
	}
	return movements, nil
}

func (s *Store) ListSales(_ context.Context, filter store.SaleFilter) ([]domain.Sale, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]domain.Sale, 0, 32)
	for _, sale := range s.st.sales {
		if sale.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.PaymentMethod != "" && sale.PaymentMethod != filter.PaymentMethod {
			continue
		}
		if filter.PaymentStatus != "" && sale.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(sale.SaleNumber), search) &&
			!strings.Contains(strings.ToLower(sale.Notes), search) {
			continue
		}
		matched = append(matched, s.st.hydrateSale(sale))
	}
	slices.SortFunc(matched, func(a, b domain.Sale) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (s *Store) GetSale(_ context.Context, organizationID string, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.st.sales[saleID]
	if !ok || sale.OrganizationID != organizationID {
		return nil, store.NotFound("sale", saleID)
	}
	hydrated := s.st.hydrateSale(sale)
	return &hydrated, nil
}

func (s *Store) GetSettings(_ context.Context, organizationID string) (*domain.OrganizationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st.getSettings(organizationID)
}

func (s *Store) ListAutoCheckoutSettings(_ context.Context, afterOrganizationID string, limit int) ([]domain.OrganizationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.OrganizationSettings, 0, 8)
	for _, st := range s.st.settings {
		if !st.EnableAutoCheckout || st.AutoCheckoutTime == nil {
			continue
		}
		if st.OrganizationID <= afterOrganizationID {
			continue
		}
		result = append(result, st)
	}
	slices.SortFunc(result, func(a, b domain.OrganizationSettings) int {
		return cmp.Compare(a.OrganizationID, b.OrganizationID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListOpenAttendance(_ context.Context, organizationID string, afterID string, limit int) ([]domain.AttendanceLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AttendanceLog, 0, 16)
	for _, l := range s.st.attendance {
		if l.OrganizationID != organizationID || !l.IsOpen() || l.ID <= afterID {
			continue
		}
		logs = append(logs, l)
	}
	slices.SortFunc(logs, func(a, b domain.AttendanceLog) int { return cmp.Compare(a.ID, b.ID) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.auditLogs = append(s.st.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, organizationID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, max(limit, 0))
	for i := len(s.st.auditLogs) - 1; i >= 0; i-- {
		entry := s.st.auditLogs[i]
		if entry.OrganizationID != organizationID {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ListAttendanceLogs(_ context.Context, organizationID string, memberID string, limit int) ([]domain.AttendanceLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AttendanceLog, 0, 16)
	for _, l := range s.st.attendance {
		if l.OrganizationID != organizationID {
			continue
		}
		if memberID != "" && l.MemberID != memberID {
			continue
		}
		logs = append(logs, l)
	}
	slices.SortFunc(logs, func(a, b domain.AttendanceLog) int {
		return cmp.Or(b.CheckInTime.Compare(a.CheckInTime), cmp.Compare(b.ID, a.ID))
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *Store) ListLoyaltyTransactions(_ context.Context, organizationID string, customerID string) ([]domain.LoyaltyTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LoyaltyTransaction, 0, 8)
	for _, entry := range s.st.loyalty {
		if entry.OrganizationID == organizationID && entry.CustomerID == customerID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.st.users[user.Username]; exists {
		return store.Conflict("username %s already exists", user.Username)
	}
	s.st.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.st.users))
	for _, u := range s.st.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int { return cmp.Compare(a.Username, b.Username) })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.st.users[username]
	if !ok {
		return store.NotFound("user", username)
	}
	user.Password = password
	s.st.users[username] = user
	return nil
}

func (st *state) getSettings(organizationID string) (*domain.OrganizationSettings, error) {
	settings, ok := st.settings[organizationID]
	if !ok {
		return nil, store.NotFound("organization settings", organizationID)
	}
	return &settings, nil
}

func (st *state) withVariants(p domain.Product) domain.Product {
	variants := make([]domain.ProductVariant, 0, 4)
	for _, v := range st.variants {
		if v.ProductID == p.ID {
			variants = append(variants, v)
		}
	}
	slices.SortFunc(variants, func(a, b domain.ProductVariant) int { return cmp.Compare(a.SKU, b.SKU) })
	p.Variants = variants
	return p
}

func (st *state) hydrateSale(sale domain.Sale) domain.Sale {
	sale.Items = slices.Clone(sale.Items)
	if sale.CustomerID != nil {
		if customer, ok := st.customers[*sale.CustomerID]; ok {
			sale.Customer = &customer
		}
	}
	if member, ok := st.members[sale.MemberID]; ok {
		sale.Member = &member
	}
	return sale
}

// memTx mutates a private copy of the state. Row locks are implied by the
// store mutex held for the whole unit of work.
type memTx struct {
	st *state
}

func (t *memTx) GetProduct(_ context.Context, organizationID string, productID string) (*domain.Product, error) {
	product, ok := t.st.products[productID]
	if !ok || product.OrganizationID != organizationID {
		return nil, store.NotFound("product", productID)
	}
	full := t.st.withVariants(product)
	return &full, nil
}

func (t *memTx) GetVariant(_ context.Context, organizationID string, variantID string) (*domain.ProductVariant, error) {
	variant, ok := t.st.variants[variantID]
	if !ok || variant.OrganizationID != organizationID {
		return nil, store.NotFound("variant", variantID)
	}
	return &variant, nil
}

func (t *memTx) GetLocation(_ context.Context, organizationID string, locationID string) (*domain.Location, error) {
	location, ok := t.st.locations[locationID]
	if !ok || location.OrganizationID != organizationID || !location.Active {
		return nil, store.NotFound("location", locationID)
	}
	return &location, nil
}

func (t *memTx) GetSettings(_ context.Context, organizationID string) (*domain.OrganizationSettings, error) {
	return t.st.getSettings(organizationID)
}

func (t *memTx) SaveSettings(_ context.Context, settings domain.OrganizationSettings) error {
	t.st.settings[settings.OrganizationID] = settings
	return nil
}

func (t *memTx) LockPosition(_ context.Context, organizationID string, positionID string) (*domain.StoragePosition, error) {
	position, ok := t.st.positions[positionID]
	if !ok || position.OrganizationID != organizationID {
		return nil, store.NotFound("storage position", positionID)
	}
	return &position, nil
}

func (t *memTx) SetPositionOccupied(_ context.Context, positionID string, occupied bool) error {
	position, ok := t.st.positions[positionID]
	if !ok {
		return store.NotFound("storage position", positionID)
	}
	position.IsOccupied = occupied
	t.st.positions[positionID] = position
	return nil
}

func (t *memTx) LockBatch(_ context.Context, organizationID string, batchID string) (*domain.StockBatch, error) {
	batch, ok := t.st.batches[batchID]
	if !ok || batch.OrganizationID != organizationID {
		return nil, store.NotFound("batch", batchID)
	}
	return &batch, nil
}

func (t *memTx) LockAvailableBatches(_ context.Context, key domain.StockKey) ([]domain.StockBatch, error) {
	batches := make([]domain.StockBatch, 0, 4)
	for _, b := range t.st.batches {
		if b.CurrentQuantity > 0 && b.Key() == key {
			batches = append(batches, b)
		}
	}
	slices.SortFunc(batches, func(a, b domain.StockBatch) int { return cmp.Compare(a.ID, b.ID) })
	return batches, nil
}

func (t *memTx) InsertBatch(_ context.Context, batch domain.StockBatch) error {
	if _, exists := t.st.batches[batch.ID]; exists {
		return store.Conflict("batch %s already exists", batch.ID)
	}
	if err := checkBatchQuantities(batch); err != nil {
		return err
	}
	t.st.batches[batch.ID] = batch
	return nil
}

func (t *memTx) UpdateBatch(_ context.Context, batch domain.StockBatch) error {
	if _, exists := t.st.batches[batch.ID]; !exists {
		return store.NotFound("batch", batch.ID)
	}
	if err := checkBatchQuantities(batch); err != nil {
		return err
	}
	t.st.batches[batch.ID] = batch
	return nil
}

func (t *memTx) AdjustStock(_ context.Context, key domain.StockKey, delta int, at time.Time) error {
	total := t.st.stock[key]
	total.StockKey = key
	total.CurrentStock += delta
	total.UpdatedAt = at
	if total.CurrentStock < 0 {
		return fmt.Errorf("stock total for product %s variant %q at %s would become %d", key.ProductID, key.VariantID, key.LocationID, total.CurrentStock)
	}
	t.st.stock[key] = total
	return nil
}

func (t *memTx) InsertMovement(_ context.Context, movement domain.StockMovement) error {
	t.st.movements = append(t.st.movements, movement)
	return nil
}

func (t *memTx) LockCustomer(_ context.Context, organizationID string, customerID string) (*domain.Customer, error) {
	customer, ok := t.st.customers[customerID]
	if !ok || customer.OrganizationID != organizationID {
		return nil, store.NotFound("customer", customerID)
	}
	return &customer, nil
}

func (t *memTx) UpdateCustomerPoints(_ context.Context, customerID string, points int) error {
	customer, ok := t.st.customers[customerID]
	if !ok {
		return store.NotFound("customer", customerID)
	}
	customer.LoyaltyPoints = points
	t.st.customers[customerID] = customer
	return nil
}

func (t *memTx) InsertLoyaltyTransaction(_ context.Context, entry domain.LoyaltyTransaction) error {
	t.st.loyalty = append(t.st.loyalty, entry)
	return nil
}

func (t *memTx) InsertSale(_ context.Context, sale domain.Sale) error {
	if _, exists := t.st.saleNumbers[sale.SaleNumber]; exists {
		return store.Conflict("sale number %s already exists", sale.SaleNumber)
	}
	sale.Items = slices.Clone(sale.Items)
	sale.Customer = nil
	sale.Member = nil
	t.st.sales[sale.ID] = sale
	t.st.saleNumbers[sale.SaleNumber] = sale.ID
	return nil
}

func (t *memTx) LockMember(_ context.Context, organizationID string, memberID string) (*domain.Member, error) {
	member, ok := t.st.members[memberID]
	if !ok || member.OrganizationID != organizationID {
		return nil, store.NotFound("member", memberID)
	}
	return &member, nil
}

func (t *memTx) UpdateMember(_ context.Context, member domain.Member) error {
	if _, exists := t.st.members[member.ID]; !exists {
		return store.NotFound("member", member.ID)
	}
	t.st.members[member.ID] = member
	return nil
}

func (t *memTx) GetAttendanceLog(_ context.Context, organizationID string, logID string) (*domain.AttendanceLog, error) {
	entry, ok := t.st.attendance[logID]
	if !ok || entry.OrganizationID != organizationID {
		return nil, store.NotFound("attendance log", logID)
	}
	return &entry, nil
}

func (t *memTx) InsertAttendanceLog(_ context.Context, entry domain.AttendanceLog) error {
	t.st.attendance[entry.ID] = entry
	return nil
}

func (t *memTx) UpdateAttendanceLog(_ context.Context, entry domain.AttendanceLog) error {
	if _, exists := t.st.attendance[entry.ID]; !exists {
		return store.NotFound("attendance log", entry.ID)
	}
	t.st.attendance[entry.ID] = entry
	return nil
}

func (t *memTx) InsertAuditLog(_ context.Context, entry domain.AuditLog) error {
	t.st.auditLogs = append(t.st.auditLogs, entry)
	return nil
}

func checkBatchQuantities(batch domain.StockBatch) error {
	if batch.CurrentQuantity < 0 || batch.CurrentQuantity > batch.InitialQuantity {
		return fmt.Errorf("batch %s quantity %d outside 0..%d", batch.ID, batch.CurrentQuantity, batch.InitialQuantity)
	}
	return nil
}
