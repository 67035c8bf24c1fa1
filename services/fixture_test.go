package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	config "github.com/edlight123/eventhaiti-payouts/configs"
	"github.com/edlight123/eventhaiti-payouts/database"
	"github.com/edlight123/eventhaiti-payouts/models"
	"github.com/edlight123/eventhaiti-payouts/notifications"
	"github.com/edlight123/eventhaiti-payouts/secrets"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.AdminEvent
}

func (n *recordingNotifier) NotifyAdmins(evt notifications.AdminEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) count(t notifications.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Type == t {
			c++
		}
	}
	return c
}

type fakeRates struct {
	rate decimal.Decimal
	err  error
	hits int
}

func (f *fakeRates) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	f.hits++
	return f.rate, f.err
}

type fixture struct {
	db           *gorm.DB
	config       *PlatformConfigService
	balances     *BalanceService
	earnings     *EarningsService
	settlement   *SettlementService
	payouts      *PayoutService
	withdrawals  *WithdrawalService
	verification *VerificationService
	destinations *DestinationService
	quotes       *QuoteService
	rates        *fakeRates
	notifier     *recordingNotifier
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = database.SeedPlatformConfig(db,
		config.SettlementConfig{HoldDays: 7, MinimumPayoutCents: 5000},
		config.PrefundingConfig{Enabled: true},
	)
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return db
}

// newPostgresDB connects to DATABASE_URL so row locks are exercised for real. sqlite
// ignores FOR UPDATE and the sqlite fixture runs on one connection.
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = database.SeedPlatformConfig(db,
		config.SettlementConfig{HoldDays: 7, MinimumPayoutCents: 5000},
		config.PrefundingConfig{Enabled: true},
	)
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}
	return db
}

// forEachBackend runs fn against sqlite and, when DATABASE_URL is set, postgres.
func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, newFixture(t))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, newFixtureWithDB(t, newPostgresDB(t)))
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, newTestDB(t))
}

func newFixtureWithDB(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	log := zerolog.Nop()

	sealer, err := secrets.NewSealer(testKey)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}

	f := &fixture{
		db:       db,
		rates:    &fakeRates{rate: decimal.RequireFromString("132.5")},
		notifier: &recordingNotifier{},
	}
	f.config = NewPlatformConfigService(db, time.Minute, log)
	f.balances = NewBalanceService(db, log)
	f.earnings = NewEarningsService(db, f.config, log)
	f.settlement = NewSettlementService(db, log)
	f.payouts = NewPayoutService(db, f.config, f.notifier, log)
	f.quotes = NewQuoteService(db, f.config, f.rates, time.Second, log)
	f.withdrawals = NewWithdrawalService(db, f.quotes, f.config, f.notifier, log)
	f.verification = NewVerificationService(db, f.notifier, log)
	f.destinations = NewDestinationService(db, sealer, log)
	return f
}

func (f *fixture) setPrefunding(t *testing.T, enabled, available bool) {
	t.Helper()
	err := f.db.Model(&models.PlatformPayoutConfig{}).
		Where("id = ?", models.PlatformPayoutConfigID).
		Updates(map[string]interface{}{"prefunding_enabled": enabled, "prefunding_available": available}).Error
	if err != nil {
		t.Fatalf("set prefunding: %v", err)
	}
	f.config.Invalidate()
}

func (f *fixture) profile(t *testing.T, organizerID uuid.UUID, status models.OrganizerPayoutStatus, instant bool) {
	t.Helper()
	p := models.OrganizerProfile{OrganizerID: organizerID, PayoutStatus: status, AllowInstantMoncash: instant}
	if err := f.db.Save(&p).Error; err != nil {
		t.Fatalf("save profile: %v", err)
	}
}

// readyEvent seeds one event of ready earnings backed by a single confirmed ticket.
func (f *fixture) readyEvent(t *testing.T, organizerID uuid.UUID, net int64, currency string) models.EventEarnings {
	t.Helper()
	return f.event(t, organizerID, net, currency, models.SettlementReady, time.Now().UTC().Add(-48*time.Hour))
}

func (f *fixture) event(t *testing.T, organizerID uuid.UUID, net int64, currency string, status models.SettlementStatus, readyDate time.Time) models.EventEarnings {
	t.Helper()
	e := models.EventEarnings{
		EventID:             uuid.New(),
		OrganizerID:         organizerID,
		GrossAmount:         net,
		NetAmount:           net,
		Currency:            currency,
		AmountUnit:          models.AmountUnitMinor,
		SettlementStatus:    status,
		SettlementReadyDate: readyDate.Truncate(time.Second),
		TicketCount:         1,
	}
	e.Recalculate()
	if err := f.db.Create(&e).Error; err != nil {
		t.Fatalf("create earnings: %v", err)
	}
	ticket := models.Ticket{
		ID:          uuid.New(),
		EventID:     e.EventID,
		OrganizerID: organizerID,
		PriceCents:  net,
		Currency:    currency,
		Status:      models.TicketStatusConfirmed,
		PurchasedAt: readyDate.Add(-7 * 24 * time.Hour).Truncate(time.Second),
	}
	if err := f.db.Create(&ticket).Error; err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return e
}

func (f *fixture) reload(t *testing.T, eventID uuid.UUID) models.EventEarnings {
	t.Helper()
	var e models.EventEarnings
	if err := f.db.First(&e, "event_id = ?", eventID).Error; err != nil {
		t.Fatalf("reload earnings: %v", err)
	}
	return e
}

func (f *fixture) auditCount(t *testing.T, entityID uuid.UUID, action string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.AuditLog{}).Where("entity_id = ? AND action = ?", entityID, action).Count(&n).Error; err != nil {
		t.Fatalf("count audit: %v", err)
	}
	return n
}

func assertEarningsInvariant(t *testing.T, e models.EventEarnings) {
	t.Helper()
	if e.WithdrawnAmount > e.NetAmount {
		t.Fatalf("withdrawn %d exceeds net %d", e.WithdrawnAmount, e.NetAmount)
	}
	if e.WithdrawnAmount < 0 || e.AvailableToWithdraw < 0 {
		t.Fatalf("negative amounts: withdrawn=%d available=%d", e.WithdrawnAmount, e.AvailableToWithdraw)
	}
	if e.AvailableToWithdraw != e.NetAmount-e.WithdrawnAmount {
		t.Fatalf("available %d != net %d - withdrawn %d", e.AvailableToWithdraw, e.NetAmount, e.WithdrawnAmount)
	}
}

const hour = time.Hour

func nowUTC() time.Time {
	return time.Now().UTC()
}
