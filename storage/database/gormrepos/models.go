package gormrepos

import (
	"time"

	"github.com/volatiletech/null/v8"
)

func nullTime(t time.Time) null.Time { return null.NewTime(t.UTC(), !t.IsZero()) }

func nullString(s string) null.String { return null.NewString(s, s != "") }

func fromNullTime(t null.Time) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Phone        string
	IsActive     bool
	Roles        roleList
	PasswordHash null.Bytes
	PushToken    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    null.Time
}

func (userRow) TableName() string { return "users" }

type universityRow struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	City      string
	Lat       float64
	Lng       float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (universityRow) TableName() string { return "universities" }

type studentRow struct {
	UserID          string `gorm:"primaryKey"`
	UniversityID    string `gorm:"index"`
	CampusCity      string
	StudentIDNumber string
	LastSpinAt      null.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (studentRow) TableName() string { return "students" }

type businessRow struct {
	ID                   string `gorm:"primaryKey"`
	OwnerID              string `gorm:"index"`
	Name                 string
	Description          string
	Category             string
	City                 string
	Status               string
	SubscriptionStatus   string
	StripeCustomerID     string `gorm:"index"`
	StripeSubscriptionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Locations            []locationRow `gorm:"foreignKey:BusinessID"`
}

func (businessRow) TableName() string { return "businesses" }

type locationRow struct {
	ID         string `gorm:"primaryKey"`
	BusinessID string `gorm:"index"`
	Label      string
	Address    string
	City       string
	Lat        float64
	Lng        float64
	CreatedAt  time.Time
}

func (locationRow) TableName() string { return "locations" }

type dealRow struct {
	ID              string `gorm:"primaryKey"`
	BusinessID      string `gorm:"index"`
	Title           string
	Description     string
	Category        string
	DiscountPercent int
	ExpiresAt       null.Time
	Priority        null.Int
	CooldownHours   int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Business        *businessRow `gorm:"foreignKey:BusinessID"`
}

func (dealRow) TableName() string { return "deals" }

type savedDealRow struct {
	UserID    string `gorm:"primaryKey"`
	DealID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (savedDealRow) TableName() string { return "saved_deals" }

type ticketRow struct {
	ID        string `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex"`
	DealID    string `gorm:"index:tickets_user_deal_idx,priority:2;uniqueIndex:tickets_active_user_deal_idx,priority:2,where:status = 'active'"`
	UserID    string `gorm:"index:tickets_user_deal_idx,priority:1;uniqueIndex:tickets_active_user_deal_idx,priority:1,where:status = 'active'"`
	Status    string
	CreatedAt time.Time
	UsedAt    null.Time
}

func (ticketRow) TableName() string { return "tickets" }

type redemptionRow struct {
	ID         string `gorm:"primaryKey"`
	TicketID   string `gorm:"uniqueIndex"`
	DealID     string
	BusinessID string `gorm:"index"`
	LocationID string
	UserID     string
	Lat        float64
	Lng        float64
	DistanceM  float64
	RedeemedAt time.Time
}

func (redemptionRow) TableName() string { return "redemptions" }

type prizeRow struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	BusinessID  null.String
	Weight      int
	Quantity    int
	IsBlank     bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (prizeRow) TableName() string { return "prizes" }

type voucherRow struct {
	ID        string `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex"`
	PrizeID   string
	UserID    string `gorm:"index"`
	Status    string
	ExpiresAt time.Time
	CreatedAt time.Time
	UsedAt    null.Time
	Prize     *prizeRow `gorm:"foreignKey:PrizeID"`
}

func (voucherRow) TableName() string { return "vouchers" }

type spinRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    string
	PrizeID   string
	VoucherID null.String
	CreatedAt time.Time
}

func (spinRow) TableName() string { return "spins" }

type pushRequestRow struct {
	ID             string `gorm:"primaryKey"`
	BusinessID     string
	DealID         null.String
	UniversityID   string
	Title          string
	Body           string
	Status         string
	ReviewNote     string
	ReviewedBy     null.String
	RecipientCount int
	CreatedAt      time.Time
	ReviewedAt     null.Time
}

func (pushRequestRow) TableName() string { return "push_requests" }

type notificationRow struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Title     string
	Body      string
	Data      string
	ReadAt    null.Time
	CreatedAt time.Time
}

func (notificationRow) TableName() string { return "notifications" }
