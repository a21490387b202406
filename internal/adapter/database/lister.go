package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/semmidev/dbvault/internal/config"
)

type MySQLLister struct {
	config config.ServerConfig
	open   func(dsn string) (*sql.DB, error)
}

func NewMySQLLister(cfg config.ServerConfig) *MySQLLister {
	return &MySQLLister{
		config: cfg,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

func (m *MySQLLister) DSN() string {
	c := mysql.NewConfig()
	c.User = m.config.Username
	c.Passwd = m.config.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))
	c.Timeout = m.config.ConnectTimeout
	return c.FormatDSN()
}

// ListDatabases returns every database name in the order the server
// reports them.
func (m *MySQLLister) ListDatabases(ctx context.Context) ([]string, error) {
	db, err := m.open(m.DSN())
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("show databases: %w", err)
	}
	defer rows.Close()

	var databases []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database name: %w", err)
		}
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}

	return databases, nil
}

func (m *MySQLLister) Ping(ctx context.Context) error {
	db, err := m.open(m.DSN())
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	return nil
}
