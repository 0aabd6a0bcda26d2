package metadata

import (
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// --- Generic Accessors ---

// GetValue retrieves a value for a given key from the metadata table.
func GetValue(db *gorm.DB, key string) (string, error) {
	var meta Metadata
	err := db.Where("key = ?", key).First(&meta).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// If the key doesn't exist, return an empty string, which is a valid default.
			return "", nil
		}
		return "", err
	}
	return meta.Value, nil
}

// SetValue creates or updates a value for a given key within a transaction.
func SetValue(db *gorm.DB, key, value string) error {
	// Use GORM's OnConflict clause for an efficient and atomic "upsert" operation.
	meta := Metadata{
		Key:   key,
		Value: value,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&meta).Error
}

// --- Specific Helpers for Type Conversion ---

// GetLastSnapshotUnixMs is a helper that retrieves and parses the last snapshot time.
func GetLastSnapshotUnixMs(db *gorm.DB) (int64, error) {
	valueStr, err := GetValue(db, LastSnapshotUnixMsKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	ms, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", LastSnapshotUnixMsKey, err)
	}
	return ms, nil
}

// SetLastSnapshotUnixMs is a helper that formats and sets the last snapshot time.
func SetLastSnapshotUnixMs(db *gorm.DB, ms int64) error {
	return SetValue(db, LastSnapshotUnixMsKey, strconv.FormatInt(ms, 10))
}

// GetSnapshotTotalFinds is a helper that retrieves and parses the total finds count.
func GetSnapshotTotalFinds(db *gorm.DB) (int64, error) {
	valueStr, err := GetValue(db, SnapshotTotalFindsKey)
	if err != nil {
		return 0, err
	}
	if valueStr == "" {
		return 0, nil
	}
	count, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("无法解析元数据 '%s' 的值: %w", SnapshotTotalFindsKey, err)
	}
	return count, nil
}

// SetSnapshotTotalFinds is a helper that formats and sets the total finds count.
func SetSnapshotTotalFinds(db *gorm.DB, count int64) error {
	return SetValue(db, SnapshotTotalFindsKey, strconv.FormatInt(count, 10))
}
