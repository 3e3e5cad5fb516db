package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrMultipleMatches = errors.New("filter matched more than one record")
	ErrDuplicate       = errors.New("duplicate key")
)

// Filters условия поиска по колонкам: {"user_id": 1, "is_active": true}
type Filters map[string]any

// Store владеет пулом соединений и открывает единицы работы (транзакции)
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Conn возвращает соединение вне транзакции для одиночных чтений
func (s *Store) Conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// InTx выполняет fn в одной транзакции: коммит при nil, откат при ошибке или панике.
// Внутри fn используйте только переданный tx.
func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Locked добавляет SELECT ... FOR UPDATE
func Locked(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func GetByID[T any](tx *gorm.DB, id uint) (*T, error) {
	var out T
	if err := tx.First(&out, id).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

// GetBy возвращает единственную запись по фильтрам. Несколько совпадений считаются ошибкой логики.
func GetBy[T any](tx *gorm.DB, f Filters) (*T, error) {
	var rows []T
	if err := where(tx, f).Limit(2).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &rows[0], nil
	default:
		return nil, ErrMultipleMatches
	}
}

// All возвращает все записи по фильтрам, порядок не гарантируется
func All[T any](tx *gorm.DB, f Filters) ([]T, error) {
	var rows []T
	if err := where(tx, f).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func Count[T any](tx *gorm.DB, f Filters) (int64, error) {
	var n int64
	if err := where(tx.Model(new(T)), f).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// Create вставляет запись и заполняет сгенерированные поля
func Create[T any](tx *gorm.DB, obj *T) error {
	return translate(tx.Create(obj).Error)
}

// Update сохраняет указанные поля и перечитывает запись
func Update[T any](tx *gorm.DB, obj *T, fields Filters) error {
	res := tx.Model(obj).Updates(map[string]any(fields))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return translate(tx.First(obj).Error)
}

func Delete[T any](tx *gorm.DB, obj *T) error {
	res := tx.Delete(obj)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func where(tx *gorm.DB, f Filters) *gorm.DB {
	if len(f) == 0 {
		return tx
	}
	return tx.Where(map[string]any(f))
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
