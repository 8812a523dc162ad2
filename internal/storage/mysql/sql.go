package mysql

const businessColumns = "address, name, description, average_rating, reviews_count, total_weight"

const reviewColumns = "business, reviewer, title, content, rating, weight, tx_ids, last_update"

const insertBusinessSQL = `
INSERT INTO businesses
  (address, name, description, average_rating, reviews_count, total_weight)
VALUES
  (?, ?, ?, ?, ?, ?)
`

const updateBusinessSQL = `
UPDATE businesses SET
  name           = ?,
  description    = ?,
  average_rating = ?,
  reviews_count  = ?,
  total_weight   = ?
WHERE address = ?
`

// The whole slot is overwritten; callers merge before writing.
const upsertReviewSQL = `
INSERT INTO reviews
  (business, reviewer, title, content, rating, weight, tx_ids, last_update)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  title       = VALUES(title),
  content     = VALUES(content),
  rating      = VALUES(rating),
  weight      = VALUES(weight),
  tx_ids      = VALUES(tx_ids),
  last_update = VALUES(last_update)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getBusinessSQL = "SELECT " + businessColumns + " FROM businesses WHERE address = ?"

// Locks the row until the transaction ends.
const lockBusinessSQL = getBusinessSQL + " FOR UPDATE"

const businessExistsSQL = "SELECT 1 FROM businesses WHERE address = ?"

const countBusinessesSQL = "SELECT COUNT(*) FROM businesses"

const listBusinessesSQL = "SELECT " + businessColumns + `
FROM businesses
ORDER BY address
LIMIT ? OFFSET ?`

const listBusinessesFromSQL = "SELECT " + businessColumns + `
FROM businesses
WHERE address >= ?
ORDER BY address
LIMIT ?`

// Locks the slot, or the gap where it would go, until the transaction ends.
const lockReviewSQL = "SELECT " + reviewColumns + `
FROM reviews
WHERE business = ? AND reviewer = ?
FOR UPDATE`

const countReviewsSQL = "SELECT COUNT(*) FROM reviews WHERE business = ?"

const listReviewsSQL = "SELECT " + reviewColumns + `
FROM reviews
WHERE business = ?
ORDER BY reviewer
LIMIT ? OFFSET ?`

const listReviewsFromSQL = "SELECT " + reviewColumns + `
FROM reviews
WHERE business = ? AND reviewer >= ?
ORDER BY reviewer
LIMIT ?`
