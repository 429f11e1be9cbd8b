// Command admin runs schema migrations and provisions accounts from the command line.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"strings"

	"recipehub/internal/config"
	"recipehub/internal/database"
	"recipehub/internal/user"
)

func main() {
	var (
		migrateOnly = flag.Bool("migrate", false, "仅执行数据库迁移后退出")
		name        = flag.String("name", "", "新建账号的显示名称（默认取邮箱前缀）")
		email       = flag.String("email", "", "新建账号的邮箱")
		dbHost      = flag.String("db-host", "", "覆盖 DATABASE_HOST")
		dbPort      = flag.Int("db-port", 0, "覆盖 DATABASE_PORT")
		dbName      = flag.String("db-name", "", "覆盖 POSTGRES_DB")
	)
	flag.Parse()

	if !*migrateOnly && strings.TrimSpace(*email) == "" {
		log.Fatal("either -migrate or -email is required")
	}

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}
	if *dbHost != "" {
		dbCfg.Host = *dbHost
	}
	if *dbPort > 0 {
		dbCfg.Port = *dbPort
	}
	if *dbName != "" {
		dbCfg.Name = *dbName
	}

	db, err := database.InitDatabase(dbCfg, nil)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	fmt.Println("数据库迁移完成。")
	if *migrateOnly {
		return
	}

	password, err := generatePassword(24)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	displayName := strings.TrimSpace(*name)
	if displayName == "" {
		displayName, _, _ = strings.Cut(strings.TrimSpace(*email), "@")
	}

	created, err := user.NewStore(db, nil, nil).Create(context.Background(), displayName, *email, password)
	if err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("已创建账号 %s <%s>\n", created.Name, created.Email)
	fmt.Printf("ID: %s\n", created.ID)
	fmt.Printf("初始密码（仅显示一次）: %s\n", password)
}

// generatePassword 返回 URL 安全的随机密码，24 字节编码后为 32 个字符，低于 bcrypt 的 72 字节上限。
func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
