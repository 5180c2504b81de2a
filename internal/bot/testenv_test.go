package bot

import (
	"context"
	"testing"
	"time"

	"github.com/Fechomap/cargas-gas-sub000/internal/kilometer"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"github.com/Fechomap/cargas-gas-sub000/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv bundles the full conversation stack over an in-memory database.
type testEnv struct {
	db         *gorm.DB
	store      *store.GormStore
	sessions   *SessionStore
	dispatcher *Dispatcher
	adapter    *MockAdapter
	batch      *BatchEngine
	fuel       *FuelFlow
	edit       *EditFlow
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Unit{},
		&models.KilometerLog{},
		&models.FuelCharge{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func setupBot(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	st, err := store.NewGormStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	validator, err := kilometer.New(kilometer.Opts{Source: st})
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}

	sessions := NewSessionStore()
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())

	dispatcher, err := NewDispatcher(DispatcherOpts{
		Sessions: sessions,
		Adapter:  adapter,
		Out:      discard{},
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	batch, err := NewBatchEngine(dispatcher, BatchEngineOpts{
		Sessions:  sessions,
		Store:     st,
		Validator: validator,
		Adapter:   adapter,
		Out:       discard{},
	})
	if err != nil {
		t.Fatalf("new batch engine: %v", err)
	}
	fuel, err := NewFuelFlow(dispatcher, FuelFlowOpts{
		Sessions:  sessions,
		Store:     st,
		Validator: validator,
		Adapter:   adapter,
		Out:       discard{},
	})
	if err != nil {
		t.Fatalf("new fuel flow: %v", err)
	}
	edit, err := NewEditFlow(dispatcher, EditFlowOpts{
		Sessions:  sessions,
		Store:     st,
		Validator: validator,
		Adapter:   adapter,
		Out:       discard{},
	})
	if err != nil {
		t.Fatalf("new edit flow: %v", err)
	}
	RegisterCommands(dispatcher, batch, fuel, edit)

	return &testEnv{
		db:         db,
		store:      st,
		sessions:   sessions,
		dispatcher: dispatcher,
		adapter:    adapter,
		batch:      batch,
		fuel:       fuel,
		edit:       edit,
	}
}

// discard drops dispatcher progress output in tests.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (env *testEnv) seedUnit(t *testing.T, tenantID uint, number, operator string) models.Unit {
	t.Helper()
	unit := models.Unit{
		TenantID:     tenantID,
		UnitNumber:   number,
		OperatorName: operator,
		Active:       true,
	}
	if err := env.db.Create(&unit).Error; err != nil {
		t.Fatalf("seed unit: %v", err)
	}
	return unit
}

// event builds a text event for the default test chat.
func event(text string) InboundEvent {
	return InboundEvent{
		TenantID:  1,
		ChatID:    "chat-1",
		UserID:    "user-1",
		UserName:  "tester",
		Text:      text,
		Timestamp: time.Now(),
	}
}

// callback builds a button-press event for the default test chat.
func callback(data string) InboundEvent {
	ev := event("")
	ev.Callback = data
	return ev
}
