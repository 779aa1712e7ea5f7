package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables in dependency order.  Every statement is
// idempotent so Migrate can run on each start.
//
// reservations.active_schedule_id is schedule_id while the row is
// READY_TO_PLAY and NULL otherwise; its UNIQUE index lets the database
// reject a second active reservation on a slot.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS guests (
        id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        name          VARCHAR(120)    NOT NULL,
        email         VARCHAR(190)    NOT NULL,
        password_hash VARCHAR(100)    NOT NULL,
        role          VARCHAR(16)     NOT NULL DEFAULT 'GUEST',
        created_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at    DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_guests_email (email),
        KEY idx_guests_name (name)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS refresh_tokens (
        id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        guest_id   BIGINT UNSIGNED NOT NULL,
        token_hash CHAR(64)        NOT NULL,
        expires_at DATETIME        NOT NULL,
        revoked_at DATETIME        NULL,
        created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_refresh_tokens_hash (token_hash),
        CONSTRAINT fk_refresh_tokens_guest FOREIGN KEY (guest_id) REFERENCES guests (id) ON DELETE CASCADE
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS tennis_courts (
        id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        name       VARCHAR(120)    NOT NULL,
        created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS schedules (
        id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        tennis_court_id BIGINT UNSIGNED NOT NULL,
        start_date_time DATETIME        NOT NULL,
        end_date_time   DATETIME        NOT NULL,
        created_at      DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_schedules_court_start (tennis_court_id, start_date_time),
        KEY idx_schedules_range (start_date_time, end_date_time),
        CONSTRAINT fk_schedules_court FOREIGN KEY (tennis_court_id) REFERENCES tennis_courts (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
        id                      BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
        guest_id                BIGINT UNSIGNED NOT NULL,
        schedule_id             BIGINT UNSIGNED NOT NULL,
        status                  ENUM('READY_TO_PLAY','CANCELLED','RESCHEDULED') NOT NULL,
        value_cents             INT UNSIGNED    NOT NULL,
        refund_value_cents      INT UNSIGNED    NULL,
        previous_reservation_id BIGINT UNSIGNED NULL,
        next_reservation_id     BIGINT UNSIGNED NULL,
        active_schedule_id      BIGINT UNSIGNED AS (IF(status = 'READY_TO_PLAY', schedule_id, NULL)) STORED,
        created_at              DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at              DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        PRIMARY KEY (id),
        UNIQUE KEY uq_reservations_active_schedule (active_schedule_id),
        KEY idx_reservations_schedule (schedule_id),
        KEY idx_reservations_guest (guest_id, created_at),
        CONSTRAINT fk_reservations_guest FOREIGN KEY (guest_id) REFERENCES guests (id),
        CONSTRAINT fk_reservations_schedule FOREIGN KEY (schedule_id) REFERENCES schedules (id),
        CONSTRAINT fk_reservations_previous FOREIGN KEY (previous_reservation_id) REFERENCES reservations (id),
        CONSTRAINT chk_reservations_refund CHECK (refund_value_cents IS NULL OR refund_value_cents <= 100000)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
