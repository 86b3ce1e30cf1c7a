package sqlite

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fenggwsx/RoomChat/internal/config"
	"github.com/fenggwsx/RoomChat/internal/storage"
)

// Store is a GORM-backed SQLite implementation of storage.Store.
type Store struct {
	db *gorm.DB
}

type messageModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string
	Room         string `gorm:"index"`
	Email        string
	Body         string
	ProfilePhoto string
	CreatedAt    int64 `gorm:"autoCreateTime:nano;index"`
}

func (messageModel) TableName() string { return "messages" }

type onlineUserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string
	Email        string `gorm:"uniqueIndex"`
	Room         string
	ProfilePhoto string
	CreatedAt    time.Time
}

func (onlineUserModel) TableName() string { return "online_users" }

// NewStore opens a SQLite database at the provided path.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&messageModel{}, &onlineUserModel{})
}

// SaveMessage stores a chat line.
func (s *Store) SaveMessage(ctx context.Context, msg *storage.Message) error {
	if msg == nil {
		return errors.New("nil message")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	model := messageModel{
		ID:           msg.ID,
		Username:     msg.User,
		Room:         msg.Room,
		Email:        msg.Email,
		Body:         msg.Body,
		ProfilePhoto: msg.ProfilePhoto,
		CreatedAt:    msg.CreatedAt.UnixNano(),
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// ListMessagesByRoom returns the newest messages of room in chronological order.
func (s *Store) ListMessagesByRoom(ctx context.Context, room string, limit int) ([]storage.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var models []messageModel
	query := s.db.WithContext(ctx).Where("room = ?", room)
	if err := query.Order("created_at DESC").Order("rowid DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]storage.Message, len(models))
	for i, m := range models {
		out[len(models)-1-i] = storage.Message{
			ID:           m.ID,
			User:         m.Username,
			Room:         m.Room,
			Email:        m.Email,
			Body:         m.Body,
			ProfilePhoto: m.ProfilePhoto,
			CreatedAt:    time.Unix(0, m.CreatedAt).UTC(),
		}
	}
	return out, nil
}

// DeleteMessage removes a message by id.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&messageModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteMessagesByAuthor removes every message an identity wrote in a room.
func (s *Store) DeleteMessagesByAuthor(ctx context.Context, user, room, email string) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("username = ? AND room = ? AND email = ?", user, room, email).
		Delete(&messageModel{})
	return res.RowsAffected, res.Error
}

// CreateOnlineUser stores a presence record.
func (s *Store) CreateOnlineUser(ctx context.Context, user *storage.OnlineUser) error {
	if user == nil {
		return errors.New("nil online user")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	model := onlineUserModel{
		ID:           user.ID,
		Username:     user.User,
		Email:        user.Email,
		Room:         user.Room,
		ProfilePhoto: user.ProfilePhoto,
		CreatedAt:    user.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return storage.ErrDuplicate
		}
		return err
	}
	return nil
}

// FindOnlineUser looks up a presence record by its full identity.
func (s *Store) FindOnlineUser(ctx context.Context, email, user, room string) (*storage.OnlineUser, error) {
	var model onlineUserModel
	err := s.db.WithContext(ctx).
		Where("email = ? AND username = ? AND room = ?", email, user, room).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &storage.OnlineUser{
		ID:           model.ID,
		User:         model.Username,
		Email:        model.Email,
		Room:         model.Room,
		ProfilePhoto: model.ProfilePhoto,
		CreatedAt:    model.CreatedAt,
	}, nil
}

// DeleteOnlineUser removes a presence record by id.
func (s *Store) DeleteOnlineUser(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&onlineUserModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}
