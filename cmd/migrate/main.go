package main

import (
	"database/sql"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"gsi-service/database"
)

// seedWeapon 武器目录种子条目
type seedWeapon struct {
	name     string
	category string
	maxClip  int // 0 表示无弹匣 (近战、投掷物)
}

// CS2武器目录。摄取路径依赖这份参考数据把武器名解析为目录ID
var weaponSeed = []seedWeapon{
	// Pistols
	{"weapon_deagle", "Pistols", 7},
	{"weapon_revolver", "Pistols", 8},
	{"weapon_glock", "Pistols", 20},
	{"weapon_usp_silencer", "Pistols", 12},
	{"weapon_hkp2000", "Pistols", 13},
	{"weapon_p250", "Pistols", 13},
	{"weapon_fiveseven", "Pistols", 20},
	{"weapon_tec9", "Pistols", 18},
	{"weapon_cz75a", "Pistols", 12},
	{"weapon_elite", "Pistols", 30},

	// Rifles
	{"weapon_ak47", "Rifles", 30},
	{"weapon_m4a1", "Rifles", 30},
	{"weapon_m4a1_silencer", "Rifles", 20},
	{"weapon_famas", "Rifles", 25},
	{"weapon_galilar", "Rifles", 35},
	{"weapon_aug", "Rifles", 30},
	{"weapon_sg556", "Rifles", 30},

	// SniperRifles
	{"weapon_awp", "SniperRifles", 5},
	{"weapon_ssg08", "SniperRifles", 10},
	{"weapon_scar20", "SniperRifles", 20},
	{"weapon_g3sg1", "SniperRifles", 20},

	// SMGs
	{"weapon_mp9", "SMGs", 30},
	{"weapon_mac10", "SMGs", 30},
	{"weapon_mp7", "SMGs", 30},
	{"weapon_mp5sd", "SMGs", 30},
	{"weapon_ump45", "SMGs", 25},
	{"weapon_p90", "SMGs", 50},
	{"weapon_bizon", "SMGs", 64},

	// Shotguns
	{"weapon_nova", "Shotguns", 8},
	{"weapon_xm1014", "Shotguns", 7},
	{"weapon_sawedoff", "Shotguns", 7},
	{"weapon_mag7", "Shotguns", 5},

	// MachineGuns
	{"weapon_m249", "MachineGuns", 100},
	{"weapon_negev", "MachineGuns", 150},

	// Knives
	{"weapon_knife", "Knives", 0},
	{"weapon_knife_t", "Knives", 0},

	// Grenades
	{"weapon_hegrenade", "Grenades", 1},
	{"weapon_flashbang", "Grenades", 1},
	{"weapon_smokegrenade", "Grenades", 1},
	{"weapon_incgrenade", "Grenades", 1},
	{"weapon_molotov", "Grenades", 1},
	{"weapon_decoy", "Grenades", 1},

	// C4
	{"weapon_c4", "C4", 0},

	// Other
	{"weapon_taser", "Other", 1},
	{"weapon_healthshot", "Other", 1},
}

func main() {
	// 从环境变量获取数据库 URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	// 连接数据库
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	// 建表
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("✅ Schema migration completed")

	// 武器目录种子，重复执行安全
	seeded := 0
	for _, w := range weaponSeed {
		var maxClip interface{}
		if w.maxClip > 0 {
			maxClip = w.maxClip
		}
		_, err := db.Exec(`
			INSERT INTO weapons (name, category, max_clip)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET
				category = EXCLUDED.category,
				max_clip = EXCLUDED.max_clip
		`, w.name, w.category, maxClip)
		if err != nil {
			log.Fatalf("Failed to seed weapon %s: %v", w.name, err)
		}
		seeded++
	}
	log.Printf("✅ Seeded %d weapons", seeded)

	// 可选的开发账户种子: SEED_ACCOUNT="steamid:name:token"
	if seed := os.Getenv("SEED_ACCOUNT"); seed != "" {
		parts := strings.SplitN(seed, ":", 3)
		if len(parts) != 3 {
			log.Fatalf("Invalid SEED_ACCOUNT format, expected steamid:name:token")
		}
		_, err := db.Exec(`
			INSERT INTO steam_accounts (steam_id, player_name, auth_token)
			VALUES ($1, $2, $3)
			ON CONFLICT (steam_id) DO UPDATE SET
				player_name = EXCLUDED.player_name,
				auth_token = EXCLUDED.auth_token
		`, parts[0], parts[1], parts[2])
		if err != nil {
			log.Fatalf("Failed to seed account: %v", err)
		}
		log.Printf("✅ Seeded account %s (%s)", parts[0], parts[1])
	}

	log.Println("All migrations completed successfully!")
}
