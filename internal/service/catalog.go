package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, actor.OrganizationID)
	if err != nil {
		return nil, s.fail("list products", err)
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	fields := map[string]string{}
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Name = strings.TrimSpace(req.Name)
	if req.SKU == "" {
		fields["sku"] = "is required"
	}
	if req.Name == "" {
		fields["name"] = "is required"
	}
	if req.BasePrice.IsNegative() {
		fields["basePrice"] = "must not be negative"
	}

	now := s.now().UTC()
	product := domain.Product{
		ID:             xid.New("prod"),
		OrganizationID: actor.OrganizationID,
		SKU:            req.SKU,
		Name:           req.Name,
		BasePrice:      req.BasePrice.Round(2),
		Active:         true,
		CreatedAt:      now,
	}

	seen := map[string]bool{req.SKU: true}
	for i, v := range req.Variants {
		sku := strings.ToUpper(strings.TrimSpace(v.SKU))
		name := strings.TrimSpace(v.Name)
		if sku == "" || name == "" {
			fields[fmt.Sprintf("variants[%d]", i)] = "sku and name are required"
			continue
		}
		if seen[sku] {
			fields[fmt.Sprintf("variants[%d].sku", i)] = "duplicates another sku in the request"
			continue
		}
		seen[sku] = true
		if v.PriceModifier.Add(req.BasePrice).IsNegative() {
			fields[fmt.Sprintf("variants[%d].priceModifier", i)] = "results in a negative price"
		}
		product.Variants = append(product.Variants, domain.ProductVariant{
			ID:             xid.New("var"),
			OrganizationID: actor.OrganizationID,
			ProductID:      product.ID,
			SKU:            sku,
			Name:           name,
			PriceModifier:  v.PriceModifier.Round(2),
			Active:         true,
		})
	}
	if len(fields) > 0 {
		return domain.Product{}, &store.ValidationError{Message: "invalid product", Fields: fields}
	}

	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return domain.Product{}, s.fail("create product", err)
	}
	s.logAudit(ctx, actor, "product_create", "product", product.ID, fmt.Sprintf("sku=%s,price=%s,variants=%d", product.SKU, product.BasePrice, len(product.Variants)))
	return product, nil
}

func (s *Service) ListLocations(ctx context.Context) ([]domain.Location, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	locations, err := s.repo.ListLocations(ctx, actor.OrganizationID)
	if err != nil {
		return nil, s.fail("list locations", err)
	}
	return locations, nil
}

func (s *Service) CreateLocation(ctx context.Context, req domain.LocationCreateRequest) (domain.Location, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Location{}, store.InvalidField("name", "is required")
	}

	location := domain.Location{
		ID:             xid.New("loc"),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Active:         true,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateLocation(ctx, location); err != nil {
		return domain.Location{}, s.fail("create location", err)
	}
	s.logAudit(ctx, actor, "location_create", "location", location.ID, "name="+location.Name)
	return location, nil
}

func (s *Service) CreateStorageUnit(ctx context.Context, req domain.StorageUnitCreateRequest) (domain.StorageUnit, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.StorageUnit{}, err
	}

	fields := map[string]string{}
	req.Name = strings.TrimSpace(req.Name)
	req.UnitType = strings.ToUpper(strings.TrimSpace(req.UnitType))
	if req.Name == "" {
		fields["name"] = "is required"
	}
	if req.UnitType == "" {
		req.UnitType = "SHELF"
	}
	if len(req.Positions) == 0 {
		fields["positions"] = "at least one position is required"
	}
	if _, err := s.findLocation(ctx, actor.OrganizationID, req.LocationID); err != nil {
		return domain.StorageUnit{}, err
	}

	unit := domain.StorageUnit{
		ID:             xid.New("unit"),
		OrganizationID: actor.OrganizationID,
		LocationID:     req.LocationID,
		Name:           req.Name,
		UnitType:       req.UnitType,
		CreatedAt:      s.now().UTC(),
	}
	codes := map[string]bool{}
	for i, p := range req.Positions {
		code := strings.ToUpper(strings.TrimSpace(p.Code))
		switch {
		case code == "":
			fields[fmt.Sprintf("positions[%d].code", i)] = "is required"
			continue
		case codes[code]:
			fields[fmt.Sprintf("positions[%d].code", i)] = "duplicates another position"
			continue
		case p.Capacity < 0:
			fields[fmt.Sprintf("positions[%d].capacity", i)] = "must not be negative"
		case p.MaxWeight.IsNegative():
			fields[fmt.Sprintf("positions[%d].maxWeight", i)] = "must not be negative"
		}
		codes[code] = true
		unit.Positions = append(unit.Positions, domain.StoragePosition{
			ID:             xid.New("pos"),
			OrganizationID: actor.OrganizationID,
			StorageUnitID:  unit.ID,
			LocationID:     unit.LocationID,
			Code:           code,
			MaxWeight:      p.MaxWeight,
			Capacity:       p.Capacity,
		})
	}
	if len(fields) > 0 {
		return domain.StorageUnit{}, &store.ValidationError{Message: "invalid storage unit", Fields: fields}
	}

	if err := s.repo.CreateStorageUnit(ctx, unit); err != nil {
		return domain.StorageUnit{}, s.fail("create storage unit", err)
	}
	s.logAudit(ctx, actor, "storage_unit_create", "storage_unit", unit.ID, fmt.Sprintf("location=%s,positions=%d", unit.LocationID, len(unit.Positions)))
	return unit, nil
}

func (s *Service) ListStoragePositions(ctx context.Context, locationID string) ([]domain.StoragePosition, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := s.repo.ListStoragePositions(ctx, actor.OrganizationID, strings.TrimSpace(locationID))
	if err != nil {
		return nil, s.fail("list storage positions", err)
	}
	return positions, nil
}

func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.repo.ListCustomers(ctx, actor.OrganizationID, limit)
	if err != nil {
		return nil, s.fail("list customers", err)
	}
	return customers, nil
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, store.InvalidField("name", "is required")
	}

	customer := domain.Customer{
		ID:             xid.New("cust"),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Phone:          strings.TrimSpace(req.Phone),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		return domain.Customer{}, s.fail("create customer", err)
	}
	s.logAudit(ctx, actor, "customer_create", "customer", customer.ID, "name="+customer.Name)
	return customer, nil
}

func (s *Service) ListLoyaltyTransactions(ctx context.Context, customerID string) ([]domain.LoyaltyTransaction, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListLoyaltyTransactions(ctx, actor.OrganizationID, customerID)
	if err != nil {
		return nil, s.fail("list loyalty transactions", err)
	}
	return entries, nil
}

// CreateMember registers a staff member together with a cashier login.
func (s *Service) CreateMember(ctx context.Context, req domain.MemberCreateRequest) (domain.MemberCreateResponse, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.MemberCreateResponse{}, err
	}

	fields := map[string]string{}
	name := strings.TrimSpace(req.Name)
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if name == "" {
		fields["name"] = "is required"
	}
	if len(username) < 3 {
		fields["username"] = "must be at least 3 characters"
	}
	if len(req.Password) < 8 {
		fields["password"] = "must be at least 8 characters"
	}
	if len(fields) > 0 {
		return domain.MemberCreateResponse{}, &store.ValidationError{Message: "invalid member", Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.MemberCreateResponse{}, s.fail("hash password", err)
	}

	now := s.now().UTC()
	member := domain.Member{
		ID:             xid.New("mem"),
		OrganizationID: actor.OrganizationID,
		Name:           name,
		Role:           domain.RoleCashier,
		CreatedAt:      now,
	}
	user := domain.UserAccount{
		Username:       username,
		Password:       string(hash),
		Role:           domain.RoleCashier,
		OrganizationID: actor.OrganizationID,
		MemberID:       member.ID,
		Active:         true,
		CreatedAt:      now,
	}
	if err := s.repo.CreateMember(ctx, member, user); err != nil {
		return domain.MemberCreateResponse{}, s.fail("create member", err)
	}
	s.logAudit(ctx, actor, "member_create", "member", member.ID, "username="+username)
	return domain.MemberCreateResponse{Member: member, User: user}, nil
}

func (s *Service) findLocation(ctx context.Context, organizationID string, locationID string) (domain.Location, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return domain.Location{}, store.InvalidField("locationId", "is required")
	}
	locations, err := s.repo.ListLocations(ctx, organizationID)
	if err != nil {
		return domain.Location{}, s.fail("list locations", err)
	}
	for _, l := range locations {
		if l.ID == locationID && l.Active {
			return l, nil
		}
	}
	return domain.Location{}, store.NotFound("location", locationID)
}

func parseDate(field string, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, store.InvalidField(field, "must be a date formatted YYYY-MM-DD")
	}
	return &parsed, nil
}
