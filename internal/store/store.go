package store

import (
	"context"
	"time"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
)

// Repository is the persistence boundary. Multi-step mutations go through
// InTx; the remaining methods are single-statement reads and catalog writes.
type Repository interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	CreateProduct(ctx context.Context, product domain.Product) error
	ListProducts(ctx context.Context, organizationID string) ([]domain.Product, error)
	CreateLocation(ctx context.Context, location domain.Location) error
	ListLocations(ctx context.Context, organizationID string) ([]domain.Location, error)
	CreateStorageUnit(ctx context.Context, unit domain.StorageUnit) error
	ListStoragePositions(ctx context.Context, organizationID string, locationID string) ([]domain.StoragePosition, error)
	CreateCustomer(ctx context.Context, customer domain.Customer) error
	ListCustomers(ctx context.Context, organizationID string, limit int) ([]domain.Customer, error)
	CreateMember(ctx context.Context, member domain.Member, user domain.UserAccount) error
	GetMember(ctx context.Context, organizationID string, memberID string) (*domain.Member, error)

	ListBatches(ctx context.Context, filter BatchFilter) ([]domain.StockBatch, error)
	ListVariantStock(ctx context.Context, organizationID string, locationID string) ([]domain.VariantStock, error)
	ListMovements(ctx context.Context, organizationID string, batchID string) ([]domain.StockMovement, error)

	ListSales(ctx context.Context, filter SaleFilter) ([]domain.Sale, int, error)
	GetSale(ctx context.Context, organizationID string, saleID string) (*domain.Sale, error)

	GetSettings(ctx context.Context, organizationID string) (*domain.OrganizationSettings, error)
	ListAutoCheckoutSettings(ctx context.Context, afterOrganizationID string, limit int) ([]domain.OrganizationSettings, error)
	ListOpenAttendance(ctx context.Context, organizationID string, afterID string, limit int) ([]domain.AttendanceLog, error)
	ListAttendanceLogs(ctx context.Context, organizationID string, memberID string, limit int) ([]domain.AttendanceLog, error)
	ListLoyaltyTransactions(ctx context.Context, organizationID string, customerID string) ([]domain.LoyaltyTransaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, organizationID string, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// Tx is the unit of work handed to InTx callbacks. Lock* methods take row
// locks that are held until the transaction ends.
type Tx interface {
	GetProduct(ctx context.Context, organizationID string, productID string) (*domain.Product, error)
	GetVariant(ctx context.Context, organizationID string, variantID string) (*domain.ProductVariant, error)
	GetLocation(ctx context.Context, organizationID string, locationID string) (*domain.Location, error)
	GetSettings(ctx context.Context, organizationID string) (*domain.OrganizationSettings, error)
	SaveSettings(ctx context.Context, settings domain.OrganizationSettings) error

	LockPosition(ctx context.Context, organizationID string, positionID string) (*domain.StoragePosition, error)
	SetPositionOccupied(ctx context.Context, positionID string, occupied bool) error
	LockBatch(ctx context.Context, organizationID string, batchID string) (*domain.StockBatch, error)
	LockAvailableBatches(ctx context.Context, key domain.StockKey) ([]domain.StockBatch, error)
	InsertBatch(ctx context.Context, batch domain.StockBatch) error
	UpdateBatch(ctx context.Context, batch domain.StockBatch) error
	AdjustStock(ctx context.Context, key domain.StockKey, delta int, at time.Time) error
	InsertMovement(ctx context.Context, movement domain.StockMovement) error

	LockCustomer(ctx context.Context, organizationID string, customerID string) (*domain.Customer, error)
	UpdateCustomerPoints(ctx context.Context, customerID string, points int) error
	InsertLoyaltyTransaction(ctx context.Context, entry domain.LoyaltyTransaction) error
	InsertSale(ctx context.Context, sale domain.Sale) error

	LockMember(ctx context.Context, organizationID string, memberID string) (*domain.Member, error)
	UpdateMember(ctx context.Context, member domain.Member) error
	GetAttendanceLog(ctx context.Context, organizationID string, logID string) (*domain.AttendanceLog, error)
	InsertAttendanceLog(ctx context.Context, entry domain.AttendanceLog) error
	UpdateAttendanceLog(ctx context.Context, entry domain.AttendanceLog) error

	InsertAuditLog(ctx context.Context, entry domain.AuditLog) error
}

type BatchFilter struct {
	OrganizationID  string
	ProductID       string
	VariantID       string
	LocationID      string
	IncludeDepleted bool
	Limit           int
}

type SaleFilter struct {
	OrganizationID string
	Search         string
	PaymentMethod  string
	PaymentStatus  string
	From           *time.Time
	To             *time.Time
	Offset         int
	Limit          int
}
