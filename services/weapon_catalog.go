package services

import (
	"database/sql"
	"fmt"

	"gsi-service/database"
	"gsi-service/logger"
)

// WeaponCatalog 武器参考目录。启动时从 weapons 表整体加载，
// 此后只读，可被所有会话无锁共享
type WeaponCatalog struct {
	byName map[string]database.Weapon
}

// LoadWeaponCatalog 从数据库加载武器目录
func LoadWeaponCatalog(db *sql.DB) (*WeaponCatalog, error) {
	rows, err := db.Query(`SELECT weapon_id, name, category, max_clip FROM weapons`)
	if err != nil {
		return nil, fmt.Errorf("failed to load weapon catalog: %w", err)
	}
	defer rows.Close()

	catalog := &WeaponCatalog{byName: make(map[string]database.Weapon)}
	for rows.Next() {
		var w database.Weapon
		if err := rows.Scan(&w.WeaponID, &w.Name, &w.Category, &w.MaxClip); err != nil {
			return nil, fmt.Errorf("failed to scan weapon: %w", err)
		}
		catalog.byName[w.Name] = w
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Printf("[WeaponCatalog] Loaded %d weapons", len(catalog.byName))
	return catalog, nil
}

// NewWeaponCatalog 从给定条目构建目录 (测试用)
func NewWeaponCatalog(weapons []database.Weapon) *WeaponCatalog {
	catalog := &WeaponCatalog{byName: make(map[string]database.Weapon, len(weapons))}
	for _, w := range weapons {
		catalog.byName[w.Name] = w
	}
	return catalog
}

// Lookup 按名称查找武器，未收录返回 false
func (c *WeaponCatalog) Lookup(name string) (database.Weapon, bool) {
	w, ok := c.byName[name]
	return w, ok
}

// Size 目录条目数
func (c *WeaponCatalog) Size() int {
	return len(c.byName)
}
