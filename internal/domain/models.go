package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
	RoleSystem  = "system"
)

type Actor struct {
	Username       string `json:"username"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
	MemberID       string `json:"memberId"`
}

type OrganizationSettings struct {
	OrganizationID     string    `json:"organizationId" db:"organization_id"`
	EnableAutoCheckout bool      `json:"enableAutoCheckout" db:"enable_auto_checkout"`
	AutoCheckoutTime   *string   `json:"autoCheckoutTime,omitempty" db:"auto_checkout_time"`
	DefaultTimezone    string    `json:"defaultTimezone" db:"default_timezone"`
	DefaultLocationID  *string   `json:"defaultLocationId,omitempty" db:"default_location_id"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at"`
}

type Location struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

type StorageUnit struct {
	ID             string            `json:"id" db:"id"`
	OrganizationID string            `json:"organizationId" db:"organization_id"`
	LocationID     string            `json:"locationId" db:"location_id"`
	Name           string            `json:"name" db:"name"`
	UnitType       string            `json:"unitType" db:"unit_type"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	Positions      []StoragePosition `json:"positions,omitempty" db:"-"`
}

// StoragePosition is the smallest addressable slot a batch can occupy.
// LocationID is copied from the parent unit.
type StoragePosition struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organizationId" db:"organization_id"`
	StorageUnitID  string          `json:"storageUnitId" db:"storage_unit_id"`
	LocationID     string          `json:"locationId" db:"location_id"`
	Code           string          `json:"code" db:"code"`
	IsOccupied     bool            `json:"isOccupied" db:"is_occupied"`
	MaxWeight      decimal.Decimal `json:"maxWeight" db:"max_weight"`
	Capacity       int             `json:"capacity" db:"capacity"`
}

type Product struct {
	ID             string           `json:"id" db:"id"`
	OrganizationID string           `json:"organizationId" db:"organization_id"`
	SKU            string           `json:"sku" db:"sku"`
	Name           string           `json:"name" db:"name"`
	BasePrice      decimal.Decimal  `json:"basePrice" db:"base_price"`
	Active         bool             `json:"active" db:"active"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	Variants       []ProductVariant `json:"variants,omitempty" db:"-"`
}

type ProductVariant struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organizationId" db:"organization_id"`
	ProductID      string          `json:"productId" db:"product_id"`
	SKU            string          `json:"sku" db:"sku"`
	Name           string          `json:"name" db:"name"`
	PriceModifier  decimal.Decimal `json:"priceModifier" db:"price_modifier"`
	Active         bool            `json:"active" db:"active"`
}

// StockKey identifies one running stock total. VariantID is empty for
// products sold without variants.
type StockKey struct {
	OrganizationID string `json:"organizationId" db:"organization_id"`
	ProductID      string `json:"productId" db:"product_id"`
	VariantID      string `json:"variantId" db:"variant_id"`
	LocationID     string `json:"locationId" db:"location_id"`
}

type StockBatch struct {
	ID              string          `json:"id" db:"id"`
	OrganizationID  string          `json:"organizationId" db:"organization_id"`
	ProductID       string          `json:"productId" db:"product_id"`
	VariantID       *string         `json:"variantId,omitempty" db:"variant_id"`
	LocationID      string          `json:"locationId" db:"location_id"`
	PositionID      *string         `json:"positionId,omitempty" db:"position_id"`
	SourceBatchID   *string         `json:"sourceBatchId,omitempty" db:"source_batch_id"`
	InitialQuantity int             `json:"initialQuantity" db:"initial_quantity"`
	CurrentQuantity int             `json:"currentQuantity" db:"current_quantity"`
	PurchasePrice   decimal.Decimal `json:"purchasePrice" db:"purchase_price"`
	SpaceOccupied   decimal.Decimal `json:"spaceOccupied" db:"space_occupied"`
	ExpiryDate      *time.Time      `json:"expiryDate,omitempty" db:"expiry_date"`
	ReceivedAt      time.Time       `json:"receivedAt" db:"received_at"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

func (b StockBatch) Key() StockKey {
	key := StockKey{
		OrganizationID: b.OrganizationID,
		ProductID:      b.ProductID,
		LocationID:     b.LocationID,
	}
	if b.VariantID != nil {
		key.VariantID = *b.VariantID
	}
	return key
}

type VariantStock struct {
	StockKey
	CurrentStock int       `json:"currentStock" db:"current_stock"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

const (
	MovementReceipt     = "RECEIPT"
	MovementSale        = "SALE"
	MovementTransferOut = "TRANSFER_OUT"
	MovementTransferIn  = "TRANSFER_IN"
	MovementRelocation  = "RELOCATION"
)

type StockMovement struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	BatchID        string    `json:"batchId" db:"batch_id"`
	ProductID      string    `json:"productId" db:"product_id"`
	VariantID      string    `json:"variantId,omitempty" db:"variant_id"`
	LocationID     string    `json:"locationId" db:"location_id"`
	MovementType   string    `json:"movementType" db:"movement_type"`
	Quantity       int       `json:"quantity" db:"quantity"`
	QuantityBefore int       `json:"quantityBefore" db:"quantity_before"`
	QuantityAfter  int       `json:"quantityAfter" db:"quantity_after"`
	Reference      string    `json:"reference,omitempty" db:"reference"`
	MemberID       string    `json:"memberId,omitempty" db:"member_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// BatchAllocation is the portion of a depletion taken from one batch.
type BatchAllocation struct {
	BatchID    string          `json:"batchId"`
	Quantity   int             `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	ReceivedAt time.Time       `json:"receivedAt"`
	ExpiryDate *time.Time      `json:"expiryDate,omitempty"`
}

type Customer struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Phone          string    `json:"phone,omitempty" db:"phone"`
	Email          string    `json:"email,omitempty" db:"email"`
	LoyaltyPoints  int       `json:"loyaltyPoints" db:"loyalty_points"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

const LoyaltyEarn = "EARN"

type LoyaltyTransaction struct {
	ID              string    `json:"id" db:"id"`
	OrganizationID  string    `json:"organizationId" db:"organization_id"`
	CustomerID      string    `json:"customerId" db:"customer_id"`
	SaleID          string    `json:"saleId" db:"sale_id"`
	Points          int       `json:"points" db:"points"`
	TransactionType string    `json:"transactionType" db:"transaction_type"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

const (
	PaymentCash         = "CASH"
	PaymentCard         = "CARD"
	PaymentMobileMoney  = "MOBILE_MONEY"
	PaymentBankTransfer = "BANK_TRANSFER"
	PaymentCredit       = "CREDIT"

	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusPending   = "PENDING"
)

type Sale struct {
	ID                 string          `json:"id" db:"id"`
	OrganizationID     string          `json:"organizationId" db:"organization_id"`
	SaleNumber         string          `json:"saleNumber" db:"sale_number"`
	MemberID           string          `json:"memberId" db:"member_id"`
	CustomerID         *string         `json:"customerId,omitempty" db:"customer_id"`
	LocationID         string          `json:"locationId" db:"location_id"`
	PaymentMethod      string          `json:"paymentMethod" db:"payment_method"`
	PaymentStatus      string          `json:"paymentStatus" db:"payment_status"`
	TotalAmount        decimal.Decimal `json:"totalAmount" db:"total_amount"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	SaleDiscountAmount decimal.Decimal `json:"saleDiscountAmount" db:"sale_discount_amount"`
	TaxAmount          decimal.Decimal `json:"taxAmount" db:"tax_amount"`
	FinalAmount        decimal.Decimal `json:"finalAmount" db:"final_amount"`
	Notes              string          `json:"notes,omitempty" db:"notes"`
	CashDrawerID       *string         `json:"cashDrawerId,omitempty" db:"cash_drawer_id"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	Items              []SaleItem      `json:"items" db:"-"`
	Customer           *Customer       `json:"customer,omitempty" db:"-"`
	Member             *Member         `json:"member,omitempty" db:"-"`
}

// SaleItem is the part of one requested cart line fulfilled from a single batch.
type SaleItem struct {
	ID             string          `json:"id" db:"id"`
	SaleID         string          `json:"saleId" db:"sale_id"`
	LineIndex      int             `json:"lineIndex" db:"line_index"`
	ProductID      string          `json:"productId" db:"product_id"`
	VariantID      *string         `json:"variantId,omitempty" db:"variant_id"`
	SKU            string          `json:"sku" db:"sku"`
	StockBatchID   string          `json:"stockBatchId" db:"stock_batch_id"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice" db:"unit_price"`
	UnitCost       decimal.Decimal `json:"unitCost" db:"unit_cost"`
	DiscountAmount decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	TaxRate        decimal.Decimal `json:"taxRate" db:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"taxAmount" db:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"totalAmount" db:"total_amount"`
}

type Member struct {
	ID                       string     `json:"id" db:"id"`
	OrganizationID           string     `json:"organizationId" db:"organization_id"`
	Name                     string     `json:"name" db:"name"`
	Role                     string     `json:"role" db:"role"`
	IsCheckedIn              bool       `json:"isCheckedIn" db:"is_checked_in"`
	CurrentAttendanceLogID   *string    `json:"currentAttendanceLogId,omitempty" db:"current_attendance_log_id"`
	CurrentCheckInLocationID *string    `json:"currentCheckInLocationId,omitempty" db:"current_check_in_location_id"`
	LastCheckInTime          *time.Time `json:"lastCheckInTime,omitempty" db:"last_check_in_time"`
	CreatedAt                time.Time  `json:"createdAt" db:"created_at"`
}

// ClearCheckIn resets the open-session pointers.
func (m *Member) ClearCheckIn() {
	m.IsCheckedIn = false
	m.CurrentAttendanceLogID = nil
	m.CurrentCheckInLocationID = nil
}

type AttendanceLog struct {
	ID                 string     `json:"id" db:"id"`
	OrganizationID     string     `json:"organizationId" db:"organization_id"`
	MemberID           string     `json:"memberId" db:"member_id"`
	CheckInTime        time.Time  `json:"checkInTime" db:"check_in_time"`
	CheckOutTime       *time.Time `json:"checkOutTime,omitempty" db:"check_out_time"`
	CheckInLocationID  string     `json:"checkInLocationId" db:"check_in_location_id"`
	CheckOutLocationID *string    `json:"checkOutLocationId,omitempty" db:"check_out_location_id"`
	DurationMinutes    *int       `json:"durationMinutes,omitempty" db:"duration_minutes"`
	IsAutoCheckout     bool       `json:"isAutoCheckout" db:"is_auto_checkout"`
	Notes              string     `json:"notes,omitempty" db:"notes"`
}

func (l AttendanceLog) IsOpen() bool {
	return l.CheckOutTime == nil
}

type AuditLog struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	ActorUsername  string    `json:"actorUsername" db:"actor_username"`
	ActorRole      string    `json:"actorRole" db:"actor_role"`
	Action         string    `json:"action" db:"action"`
	EntityType     string    `json:"entityType" db:"entity_type"`
	EntityID       string    `json:"entityId" db:"entity_id"`
	Detail         string    `json:"detail" db:"detail"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

type UserAccount struct {
	Username       string    `json:"username" db:"username"`
	Password       string    `json:"-" db:"password"`
	Role           string    `json:"role" db:"role"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	MemberID       string    `json:"memberId" db:"member_id"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}
