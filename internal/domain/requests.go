package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken    string `json:"accessToken"`
	Role           string `json:"role"`
	OrganizationID string `json:"organizationId"`
	MemberID       string `json:"memberId"`
	ExpiresAt      string `json:"expiresAt"`
}

type ProductCreateRequest struct {
	SKU       string                 `json:"sku"`
	Name      string                 `json:"name"`
	BasePrice decimal.Decimal        `json:"basePrice"`
	Variants  []VariantCreateRequest `json:"variants,omitempty"`
}

type VariantCreateRequest struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	PriceModifier decimal.Decimal `json:"priceModifier"`
}

type LocationCreateRequest struct {
	Name string `json:"name"`
}

type StorageUnitCreateRequest struct {
	LocationID string                         `json:"locationId"`
	Name       string                         `json:"name"`
	UnitType   string                         `json:"unitType"`
	Positions  []StoragePositionCreateRequest `json:"positions"`
}

type StoragePositionCreateRequest struct {
	Code      string          `json:"code"`
	MaxWeight decimal.Decimal `json:"maxWeight"`
	Capacity  int             `json:"capacity"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type MemberCreateRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type MemberCreateResponse struct {
	Member Member      `json:"member"`
	User   UserAccount `json:"user"`
}

// BatchReceiveRequest carries ExpiryDate as YYYY-MM-DD.
type BatchReceiveRequest struct {
	ProductID     string          `json:"productId"`
	VariantID     *string         `json:"variantId,omitempty"`
	LocationID    string          `json:"locationId"`
	PositionID    *string         `json:"positionId,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SpaceOccupied decimal.Decimal `json:"spaceOccupied"`
	ExpiryDate    string          `json:"expiryDate,omitempty"`
	ReceivedAt    *time.Time      `json:"receivedAt,omitempty"`
}

type BatchMoveRequest struct {
	Quantity              int    `json:"quantity"`
	DestinationPositionID string `json:"destinationPositionId"`
}

type BatchMoveResponse struct {
	Batch  StockBatch  `json:"batch"`
	Source *StockBatch `json:"source,omitempty"`
	Split  bool        `json:"split"`
}

type SaleItemRequest struct {
	ProductID         string           `json:"productId"`
	VariantID         *string          `json:"variantId,omitempty"`
	Quantity          int              `json:"quantity"`
	UnitPriceOverride *decimal.Decimal `json:"unitPriceOverride,omitempty"`
	DiscountAmount    *decimal.Decimal `json:"discountAmount,omitempty"`
	TaxRate           *decimal.Decimal `json:"taxRate,omitempty"`
}

type SaleCreateRequest struct {
	CustomerID     *string           `json:"customerId,omitempty"`
	LocationID     *string           `json:"locationId,omitempty"`
	Items          []SaleItemRequest `json:"items"`
	PaymentMethod  string            `json:"paymentMethod"`
	DiscountAmount *decimal.Decimal  `json:"discountAmount,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	CashDrawerID   *string           `json:"cashDrawerId,omitempty"`
}

// SaleListQuery mirrors the GET /sales query string. Page is 1-based.
type SaleListQuery struct {
	Search        string
	Page          int
	PageSize      int
	PaymentMethod string
	PaymentStatus string
	DateRange     string
}

type SaleListResponse struct {
	Sales      []Sale `json:"sales"`
	TotalCount int    `json:"totalCount"`
}

type CheckInRequest struct {
	MemberID   string `json:"memberId,omitempty"`
	LocationID string `json:"locationId"`
	Notes      string `json:"notes,omitempty"`
}

type CheckOutRequest struct {
	MemberID   string `json:"memberId,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type AutoCheckoutSettingsRequest struct {
	EnableAutoCheckout bool    `json:"enableAutoCheckout"`
	AutoCheckoutTime   *string `json:"autoCheckoutTime,omitempty"`
	DefaultTimezone    string  `json:"defaultTimezone"`
	DefaultLocationID  *string `json:"defaultLocationId,omitempty"`
}

type SweepReport struct {
	RanAt                time.Time `json:"ranAt"`
	Skipped              bool      `json:"skipped"`
	OrganizationsScanned int       `json:"organizationsScanned"`
	OrganizationsMatched int       `json:"organizationsMatched"`
	OrganizationsSkipped int       `json:"organizationsSkipped"`
	SessionsClosed       int       `json:"sessionsClosed"`
	Failures             int       `json:"failures"`
}
