package storage

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/thinkzone/keygate/storage/model"
)

// Storage is a GORM-based storage implementation
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.License{},
	&model.LicenseEvent{},
	&model.KeyValue{},
	&model.User{},
}

// NewStorage creates a new GORM-based storage
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto migrate the schemas
	if err = db.AutoMigrate(models...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// Fill user hash params with defaults if zero values
	params := config.UsersHash
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}

	return &Storage{
		db:         db,
		userParams: params,
	}, nil
}

// LicenseStorage returns a LicenseStorage
func (s *Storage) LicenseStorage() *LicenseStorage {
	return &LicenseStorage{db: s.db}
}

// LicenseEventStorage returns a LicenseEventStorage
func (s *Storage) LicenseEventStorage() *LicenseEventStorage {
	return &LicenseEventStorage{db: s.db}
}

// KeyValue provides an accessor for scoped key-value storage.
func (s *Storage) KeyValue() *KeyValueStorage {
	return &KeyValueStorage{db: s.db}
}

// UsersStorage returns a UsersStorage
func (s *Storage) UsersStorage() *UsersStorage {
	return &UsersStorage{db: s.db, params: s.userParams}
}

// LoadBackends initializes the storage and returns grouped backends.
func LoadBackends(cfg Config) (model.Backends, error) {
	warehouse, err := NewStorage(cfg)
	if err != nil {
		return model.Backends{}, err
	}
	return model.Backends{
		Licenses: warehouse.LicenseStorage(),
		Events:   warehouse.LicenseEventStorage(),
		KV:       warehouse.KeyValue(),
		Users:    warehouse.UsersStorage(),
	}, nil
}
