package mysql

// schema is applied in order by Migrate; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS properties (
  id            CHAR(36)     NOT NULL PRIMARY KEY,
  owner_id      VARCHAR(128) NOT NULL,
  title         VARCHAR(255) NOT NULL DEFAULT '',
  property_type VARCHAR(64)  NOT NULL DEFAULT '',
  city          VARCHAR(128) NOT NULL DEFAULT '',
  status        VARCHAR(32)  NOT NULL DEFAULT 'pending',
  payload       JSON         NOT NULL,
  created_at    TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
  updated_at    TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
  KEY idx_properties_owner (owner_id, updated_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS property_photos (
  id            CHAR(36)      NOT NULL PRIMARY KEY,
  property_id   CHAR(36)      NOT NULL,
  image_url     VARCHAR(2048) NOT NULL,
  caption       VARCHAR(512)  NULL,
  alt_text      VARCHAR(512)  NULL,
  category      VARCHAR(64)   NOT NULL DEFAULT 'general',
  display_order INT           NOT NULL,
  is_primary    BOOLEAN       NOT NULL DEFAULT FALSE,
  KEY idx_photos_property (property_id, display_order),
  CONSTRAINT fk_photos_property FOREIGN KEY (property_id) REFERENCES properties (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

const insertPropertySQL = `
INSERT INTO properties
  (id, owner_id, title, property_type, city, status, payload)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const updatePropertySQL = `
UPDATE properties SET
  title         = ?,
  property_type = ?,
  city          = ?,
  status        = ?,
  payload       = ?,
  updated_at    = CURRENT_TIMESTAMP(6)
WHERE id = ?
`

// Drafts are rows whose status is 'draft'; they are hidden unless asked for.
const getPropertySQL = `
SELECT id, owner_id, status, payload, created_at, updated_at
FROM properties
WHERE id = ? AND (? OR status <> 'draft')
`

const deletePhotosSQL = `DELETE FROM property_photos WHERE property_id = ?`

const insertPhotosPrefix = "INSERT INTO property_photos\n  (id, property_id, image_url, caption, alt_text, category, display_order, is_primary)\nVALUES "

const getPhotosSQL = `
SELECT id, property_id, image_url, caption, alt_text, category, display_order, is_primary
FROM property_photos
WHERE property_id = ?
ORDER BY display_order, id
`
