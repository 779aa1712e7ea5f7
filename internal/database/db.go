// Package database wraps the MySQL connection and its schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	pingAttempts = 5
	pingTimeout  = 5 * time.Second
	pingBackoff  = 2 * time.Second
)

// DSN builds the driver DSN.  Times are read and written in UTC on both
// sides of the connection.
func DSN(user, pass, host, port, name string) string {
	c := mysql.NewConfig()
	c.User = user
	c.Passwd = pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, port)
	c.DBName = name
	c.ParseTime = true
	c.Loc = time.UTC
	c.Params = map[string]string{
		"charset":   "utf8mb4",
		"time_zone": "'+00:00'",
	}
	return c.FormatDSN()
}

// Open connects to MySQL and waits for it to answer a ping.  A database that
// is still starting gets a few attempts before Open gives up.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if attempt == pingAttempts {
			db.Close()
			return nil, fmt.Errorf("ping %s: %w", net.JoinHostPort(host, port), err)
		}
		log.Printf("database: ping attempt %d failed: %v", attempt, err)
		time.Sleep(pingBackoff)
	}
}
