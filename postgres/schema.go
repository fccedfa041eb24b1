package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var schema = []struct {
	name  string
	query string
}{
	{"events", `CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		organization_id VARCHAR(255) NOT NULL,
		short_name VARCHAR(255) NOT NULL,
		currency CHAR(3) NOT NULL,
		vat_percentage NUMERIC(5, 2) NOT NULL,
		vat_status VARCHAR(32) NOT NULL,
		time_zone VARCHAR(64) NOT NULL,
		begin_at TIMESTAMPTZ NOT NULL,
		end_at TIMESTAMPTZ NOT NULL,
		payment_methods TEXT[] NOT NULL,
		regular_price_cts BIGINT NOT NULL,
		seats INTEGER NOT NULL,
		general_available INTEGER NOT NULL CHECK (general_available >= 0)
	);`},
	{"ticket_categories", `CREATE TABLE IF NOT EXISTS ticket_categories (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		name VARCHAR(255) NOT NULL,
		max_tickets INTEGER NOT NULL,
		inception TIMESTAMPTZ NOT NULL,
		expiration TIMESTAMPTZ NOT NULL,
		bounded BOOLEAN NOT NULL,
		access_restricted BOOLEAN NOT NULL,
		price_cts BIGINT NOT NULL,
		status VARCHAR(32) NOT NULL,
		available INTEGER NOT NULL CHECK (available >= 0)
	);`},
	{"access_tokens", `CREATE TABLE IF NOT EXISTS access_tokens (
		id BIGSERIAL PRIMARY KEY,
		code VARCHAR(64) NOT NULL,
		event_id UUID NOT NULL REFERENCES events (id),
		category_id BIGINT NOT NULL REFERENCES ticket_categories (id),
		status VARCHAR(32) NOT NULL,
		reservation_id UUID,
		valid_until TIMESTAMPTZ
	);`},
	{"tickets", `CREATE TABLE IF NOT EXISTS tickets (
		id BIGSERIAL PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		event_id UUID NOT NULL REFERENCES events (id),
		category_id BIGINT REFERENCES ticket_categories (id),
		reservation_id UUID,
		status VARCHAR(32) NOT NULL,
		src_price_cts BIGINT NOT NULL DEFAULT 0,
		final_price_cts BIGINT NOT NULL DEFAULT 0,
		vat_cts BIGINT NOT NULL DEFAULT 0,
		discount_cts BIGINT NOT NULL DEFAULT 0,
		currency VARCHAR(3) NOT NULL DEFAULT '',
		vat_status VARCHAR(32) NOT NULL DEFAULT '',
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL DEFAULT '',
		access_token_id BIGINT REFERENCES access_tokens (id)
	);
	CREATE INDEX IF NOT EXISTS tickets_free_idx ON tickets (event_id, category_id, id) WHERE status = 'FREE';
	CREATE INDEX IF NOT EXISTS tickets_reservation_idx ON tickets (reservation_id);`},
	{"promo_codes", `CREATE TABLE IF NOT EXISTS promo_codes (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		code VARCHAR(64) NOT NULL,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_to TIMESTAMPTZ NOT NULL,
		discount_type VARCHAR(32) NOT NULL,
		discount_amount BIGINT NOT NULL,
		categories BIGINT[] NOT NULL DEFAULT '{}',
		code_type VARCHAR(32) NOT NULL,
		max_usage INTEGER NOT NULL DEFAULT 0
	);
	CREATE UNIQUE INDEX IF NOT EXISTS promo_codes_code_idx ON promo_codes (event_id, lower(code));`},
	{"additional_services", `CREATE TABLE IF NOT EXISTS additional_services (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		name VARCHAR(255) NOT NULL,
		type VARCHAR(32) NOT NULL,
		price_cts BIGINT NOT NULL,
		vat_type VARCHAR(32) NOT NULL,
		vat_percentage NUMERIC(5, 2) NOT NULL
	);`},
	{"reservations", `CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		status VARCHAR(32) NOT NULL,
		validity TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		invoice_requested BOOLEAN NOT NULL,
		billing JSONB NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		transaction_ref VARCHAR(255) NOT NULL,
		promo_code_id BIGINT REFERENCES promo_codes (id),
		src_price_cts BIGINT NOT NULL,
		final_price_cts BIGINT NOT NULL,
		vat_cts BIGINT NOT NULL,
		discount_cts BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		vat_status VARCHAR(32) NOT NULL,
		vat_percentage NUMERIC(5, 2) NOT NULL,
		invoice_number VARCHAR(255) NOT NULL,
		confirmed_at TIMESTAMPTZ,
		metadata JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS reservations_validity_idx ON reservations (status, validity);
	CREATE INDEX IF NOT EXISTS reservations_transaction_ref_idx ON reservations (transaction_ref) WHERE transaction_ref <> '';`},
	{"additional_service_items", `CREATE TABLE IF NOT EXISTS additional_service_items (
		id BIGSERIAL PRIMARY KEY,
		uuid UUID NOT NULL UNIQUE,
		reservation_id UUID NOT NULL REFERENCES reservations (id),
		service_id BIGINT NOT NULL REFERENCES additional_services (id),
		event_id UUID NOT NULL REFERENCES events (id),
		ticket_id BIGINT REFERENCES tickets (id),
		status VARCHAR(32) NOT NULL,
		src_price_cts BIGINT NOT NULL,
		final_price_cts BIGINT NOT NULL,
		vat_cts BIGINT NOT NULL,
		discount_cts BIGINT NOT NULL,
		vat_status VARCHAR(32) NOT NULL
	);`},
	{"billing_documents", `CREATE TABLE IF NOT EXISTS billing_documents (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		reservation_id UUID NOT NULL REFERENCES reservations (id),
		number VARCHAR(255) NOT NULL,
		type VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		model JSONB NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (event_id, type, number)
	);`},
	{"document_sequences", `CREATE TABLE IF NOT EXISTS document_sequences (
		event_id UUID NOT NULL,
		type VARCHAR(32) NOT NULL,
		last_value BIGINT NOT NULL,
		PRIMARY KEY (event_id, type)
	);`},
	{"configuration", `CREATE TABLE IF NOT EXISTS configuration (
		scope VARCHAR(32) NOT NULL,
		scope_id VARCHAR(255) NOT NULL,
		key VARCHAR(255) NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (scope, scope_id, key)
	);`},
	{"waiting_list", `CREATE TABLE IF NOT EXISTS waiting_list (
		id BIGSERIAL PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events (id),
		category_id BIGINT REFERENCES ticket_categories (id),
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		status VARCHAR(32) NOT NULL,
		reservation_id UUID,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS waiting_list_queue_idx ON waiting_list (event_id, status, created_at, id);`},
}

func InitialiseSchema(ctx context.Context, db *sqlx.DB) error {
	for _, table := range schema {
		if _, err := db.ExecContext(ctx, table.query); err != nil {
			return fmt.Errorf("creating %s table: %w", table.name, err)
		}
	}

	return nil
}
