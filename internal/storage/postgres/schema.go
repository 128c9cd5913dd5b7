package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id SERIAL PRIMARY KEY,
        login TEXT UNIQUE NOT NULL,
        email TEXT NOT NULL DEFAULT '',
        password_hash TEXT NOT NULL,
        role TEXT NOT NULL DEFAULT 'customer',
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS addresses (
        id SERIAL PRIMARY KEY,
        user_id BIGINT NOT NULL REFERENCES users(id),
        receiver_name TEXT NOT NULL,
        phone TEXT NOT NULL,
        street_line1 TEXT NOT NULL,
        street_line2 TEXT NOT NULL DEFAULT '',
        city TEXT NOT NULL,
        province TEXT NOT NULL,
        postal_code TEXT NOT NULL,
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS products (
        id SERIAL PRIMARY KEY,
        name TEXT NOT NULL,
        sku TEXT UNIQUE NOT NULL,
        price NUMERIC(14,2) NOT NULL CHECK (price >= 0),
        stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
        types TEXT[] NOT NULL DEFAULT ARRAY['SINGLE'],
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS bundle_items (
        bundle_id BIGINT NOT NULL REFERENCES products(id),
        product_id BIGINT NOT NULL REFERENCES products(id),
        quantity INTEGER NOT NULL CHECK (quantity > 0),
        PRIMARY KEY (bundle_id, product_id)
    )`,
	`CREATE TABLE IF NOT EXISTS carts (
        id SERIAL PRIMARY KEY,
        user_id BIGINT UNIQUE NOT NULL REFERENCES users(id)
    )`,
	`CREATE TABLE IF NOT EXISTS cart_items (
        cart_id BIGINT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
        product_id BIGINT NOT NULL REFERENCES products(id),
        quantity INTEGER NOT NULL CHECK (quantity > 0),
        PRIMARY KEY (cart_id, product_id)
    )`,
	`CREATE TABLE IF NOT EXISTS promo_codes (
        id SERIAL PRIMARY KEY,
        code TEXT UNIQUE NOT NULL,
        discount_type TEXT NOT NULL,
        value NUMERIC(14,2) NOT NULL CHECK (value >= 0),
        max_discount NUMERIC(14,2),
        min_order_amount NUMERIC(14,2),
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        start_date TIMESTAMPTZ NOT NULL,
        end_date TIMESTAMPTZ NOT NULL,
        usage_limit INTEGER,
        usage_per_user INTEGER,
        usage_count INTEGER NOT NULL DEFAULT 0,
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS orders (
        id SERIAL PRIMARY KEY,
        order_number TEXT UNIQUE NOT NULL,
        user_id BIGINT NOT NULL REFERENCES users(id),
        status TEXT NOT NULL,
        payment_status TEXT NOT NULL DEFAULT 'PENDING',
        subtotal NUMERIC(14,2) NOT NULL,
        discount_amount NUMERIC(14,2) NOT NULL DEFAULT 0,
        total_amount NUMERIC(14,2) NOT NULL CHECK (total_amount >= 0),
        promo_code_id BIGINT REFERENCES promo_codes(id),
        shipping_address TEXT NOT NULL,
        shipping_phone TEXT NOT NULL,
        shipping_receiver TEXT NOT NULL,
        payment_external_id TEXT UNIQUE NOT NULL,
        payment_url TEXT NOT NULL DEFAULT '',
        paid_at TIMESTAMPTZ,
        pending_since TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        deleted_at TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS order_items (
        id SERIAL PRIMARY KEY,
        order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
        product_id BIGINT NOT NULL REFERENCES products(id),
        product_name TEXT NOT NULL,
        product_sku TEXT NOT NULL,
        quantity INTEGER NOT NULL CHECK (quantity > 0),
        price_at_purchase NUMERIC(14,2) NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS voucher_usages (
        id SERIAL PRIMARY KEY,
        promo_code_id BIGINT NOT NULL REFERENCES promo_codes(id),
        user_id BIGINT NOT NULL REFERENCES users(id),
        order_id BIGINT NOT NULL REFERENCES orders(id),
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE TABLE IF NOT EXISTS payment_logs (
        id SERIAL PRIMARY KEY,
        order_id BIGINT NOT NULL REFERENCES orders(id),
        status TEXT NOT NULL,
        raw_payload JSONB NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_pending ON orders(pending_since, id) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_voucher_usages_user ON voucher_usages(promo_code_id, user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_logs_order ON payment_logs(order_id, created_at)`,
}
