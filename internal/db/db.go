package db

import (
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectPostgres opens the message store and runs its migrations.
func ConnectPostgres(dsn string, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	configurePool(db, maxOpen)

	if err := runMigrations(db, postgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("run postgres migrations: %w", err)
	}
	log.Println("postgres migrations applied")
	return db, nil
}

// ConnectMySQL opens the group/post store and runs its migrations.
func ConnectMySQL(dsn string, maxOpen int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	configurePool(db, maxOpen)

	if err := runMigrations(db, mysqlMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("run mysql migrations: %w", err)
	}
	log.Println("mysql migrations applied")
	return db, nil
}

// Gorm wraps an existing MySQL pool for the gorm-backed repositories so both
// share the same connections.
func Gorm(db *sqlx.DB) (*gorm.DB, error) {
	g, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db.DB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return g, nil
}

func configurePool(db *sqlx.DB, maxOpen int) {
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 5)
	db.SetConnMaxLifetime(30 * time.Minute)
}

func runMigrations(db *sqlx.DB, migrations []string) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS messages (
        id SERIAL PRIMARY KEY,
        group_id INT NOT NULL,
        user_id INT,
        username TEXT NOT NULL,
        sender_role TEXT NOT NULL DEFAULT '',
        content TEXT NOT NULL DEFAULT '',
        image_url TEXT,
        message_type TEXT NOT NULL DEFAULT 'text',
        reply_to INT REFERENCES messages(id) ON DELETE SET NULL,
        edited BOOLEAN NOT NULL DEFAULT FALSE,
        edited_at TIMESTAMPTZ,
        deleted_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
	`CREATE INDEX IF NOT EXISTS messages_group_created_idx ON messages (group_id, created_at, id);`,
	`CREATE INDEX IF NOT EXISTS messages_user_group_idx ON messages (user_id, group_id);`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
        endpoint TEXT PRIMARY KEY,
        p256dh TEXT NOT NULL,
        auth TEXT NOT NULL,
        user_id INT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`,
}

var mysqlMigrations = []string{
	"CREATE TABLE IF NOT EXISTS `groups` (" +
		"id INT AUTO_INCREMENT PRIMARY KEY," +
		"name VARCHAR(255) NOT NULL," +
		"description TEXT NOT NULL," +
		"requires_approval BOOLEAN NOT NULL DEFAULT FALSE," +
		"owner_id INT NOT NULL," +
		"avatar VARCHAR(1024) NOT NULL DEFAULT ''," +
		"created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP" +
		") CHARACTER SET utf8mb4",
	"CREATE TABLE IF NOT EXISTS group_memberships (" +
		"user_id INT NOT NULL," +
		"group_id INT NOT NULL," +
		"username VARCHAR(255) NOT NULL DEFAULT ''," +
		"role VARCHAR(16) NOT NULL DEFAULT 'member'," +
		"status VARCHAR(16) NOT NULL DEFAULT 'active'," +
		"joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP," +
		"PRIMARY KEY (user_id, group_id)," +
		"KEY group_memberships_group_idx (group_id)" +
		") CHARACTER SET utf8mb4",
	"CREATE TABLE IF NOT EXISTS join_requests (" +
		"id INT AUTO_INCREMENT PRIMARY KEY," +
		"group_id INT NOT NULL," +
		"user_id INT NOT NULL," +
		"username VARCHAR(255) NOT NULL DEFAULT ''," +
		"avatar VARCHAR(1024) NOT NULL DEFAULT ''," +
		"status VARCHAR(16) NOT NULL DEFAULT 'pending'," +
		"reviewed_by INT NULL," +
		"created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP," +
		"updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP," +
		"KEY join_requests_group_status_idx (group_id, status)," +
		"KEY join_requests_user_idx (user_id)" +
		") CHARACTER SET utf8mb4",
	"CREATE TABLE IF NOT EXISTS users (" +
		"id INT AUTO_INCREMENT PRIMARY KEY," +
		"username VARCHAR(255) NOT NULL UNIQUE," +
		"profile_picture LONGTEXT NULL" +
		") CHARACTER SET utf8mb4",
	"CREATE TABLE IF NOT EXISTS posts (" +
		"_id INT AUTO_INCREMENT PRIMARY KEY," +
		"title VARCHAR(512) NOT NULL DEFAULT ''," +
		"subject TEXT NULL," +
		"message TEXT NULL," +
		"timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP," +
		"username VARCHAR(255) NOT NULL," +
		"sessionId VARCHAR(255) NOT NULL," +
		"likes INT NOT NULL DEFAULT 0," +
		"dislikes INT NOT NULL DEFAULT 0," +
		"likedBy TEXT NULL," +
		"dislikedBy TEXT NULL," +
		"comments LONGTEXT NULL," +
		"photo LONGTEXT NULL," +
		"video LONGTEXT NULL," +
		"profile_picture LONGTEXT NULL," +
		"KEY posts_timestamp_idx (timestamp)" +
		") CHARACTER SET utf8mb4",
}
