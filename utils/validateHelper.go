package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/parishops/registry_backend/config"
)

// check if id exists, using church_id in WHERE, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, churchId int, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, churchId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check that no other row has the same value in column, scoped by church
func ValidateUnique[T any](ctx context.Context, churchId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, churchId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, churchId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE church_id = ? AND $condition
// church_id can be zero for admin users
func ResourceCountWhere[T any](ctx context.Context, churchId int, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if churchId > 0 {
		dbCtx.Where("church_id = ?", churchId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
