package store

import (
	"context"
	"errors"

	"github.com/caldog20/overlaymgr/types"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type SqlStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqlStore, error) {
	if path == "" {
		return nil, errors.New("sqlite db file path required")
	}
	return newSqlStore(sqlite.Open(path + "?cache=shared&_journal_mode=WAL&_synchronous=1"))
}

func NewPostgresStore(dsn string) (*SqlStore, error) {
	return newSqlStore(postgres.Open(dsn))
}

func newSqlStore(dialector gorm.Dialector) (*SqlStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&types.Server{}, &types.Client{}, &types.ClientConnection{})
	if err != nil {
		return nil, err
	}

	return &SqlStore{
		db: db,
	}, nil
}

func (s *SqlStore) GetServers(ctx context.Context) ([]types.Server, error) {
	servers := []types.Server{}
	if err := s.db.WithContext(ctx).Order("name").Find(&servers).Error; err != nil {
		return nil, err
	}
	return servers, nil
}

func (s *SqlStore) GetServer(ctx context.Context, name string) (*types.Server, error) {
	var server types.Server
	if err := s.db.WithContext(ctx).First(&server, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &server, nil
}

func (s *SqlStore) GetClients(ctx context.Context, server string) ([]types.ClientConnection, error) {
	conns := []types.ClientConnection{}
	q := s.db.WithContext(ctx).Preload("Client").Order("id")
	if server != "" {
		q = q.Where("server = ?", server)
	}
	if err := q.Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

func (s *SqlStore) GetClientConnection(ctx context.Context, server, client string) (*types.ClientConnection, error) {
	var c types.Client
	if err := s.db.WithContext(ctx).First(&c, "name = ?", client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var conn types.ClientConnection
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND server = ?", c.ID, server).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	conn.Client = c
	return &conn, nil
}

func (s *SqlStore) CreateServer(ctx context.Context, server *types.Server) error {
	return s.db.WithContext(ctx).Create(server).Error
}

func (s *SqlStore) CreateClient(ctx context.Context, client *types.Client) error {
	return s.db.WithContext(ctx).Create(client).Error
}

func (s *SqlStore) CreateClientConnection(ctx context.Context, conn *types.ClientConnection) error {
	if conn.ClientID == 0 {
		conn.ClientID = conn.Client.ID
	}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(conn).Error
}

func (s *SqlStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
