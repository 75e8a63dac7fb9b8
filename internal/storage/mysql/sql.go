package mysql

// -----------------------------------------------------------------------------
// CANDIDATES
// -----------------------------------------------------------------------------

const candidateColumns = `
  id, source_url, name, address, region, city, lat, lon,
  payload, status, created_at, updated_at, reviewed_at`

const insertCandidateSQL = `
INSERT INTO candidates
  (source_url, name, address, region, city, lat, lon, payload, status, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getCandidateSQL = `SELECT` + candidateColumns + `
FROM candidates
WHERE id = ?`

// Blocks until the row lock is granted; held until the tx ends.
const lockCandidateSQL = getCandidateSQL + `
FOR UPDATE`

const candidateBySourceURLSQL = `SELECT` + candidateColumns + `
FROM candidates
WHERE source_url = ?
ORDER BY id
LIMIT 1`

// List queries append their own WHERE/ORDER/LIMIT.
const listCandidatesSQL = `SELECT` + candidateColumns + `
FROM candidates`

const updateCandidateSQL = `
UPDATE candidates SET
  source_url  = ?,
  name        = ?,
  address     = ?,
  region      = ?,
  city        = ?,
  lat         = ?,
  lon         = ?,
  payload     = ?,
  status      = ?,
  updated_at  = ?,
  reviewed_at = ?
WHERE id = ?
`

// -----------------------------------------------------------------------------
// GYMS
// -----------------------------------------------------------------------------

const gymColumns = `
  id, slug, canonical_id, name, region, city, address, official_url,
  lat, lon, last_verified_at, created_at, updated_at`

const getGymSQL = `SELECT` + gymColumns + `
FROM gyms
WHERE id = ?`

const lockGymSQL = getGymSQL + `
FOR UPDATE`

const gymByCurrentSlugSQL = `SELECT` + gymColumns + `
FROM gyms
WHERE slug = ?`

// Falls back to slug history so renamed gyms keep resolving.
const gymBySlugHistorySQL = `SELECT` + gymColumns + `
FROM gyms
WHERE id = (SELECT gym_id FROM gym_slugs WHERE slug = ?)`

const gymByCanonicalIDSQL = `SELECT` + gymColumns + `
FROM gyms
WHERE canonical_id = ?`

const gymByOfficialURLSQL = `SELECT` + gymColumns + `
FROM gyms
WHERE official_url = ?
ORDER BY id
LIMIT 1`

const gymsByHostSQL = `SELECT` + gymColumns + `
FROM gyms
WHERE official_host = ?
ORDER BY id`

const gymsByCitySQL = `SELECT` + gymColumns + `
FROM gyms
WHERE region = ? AND city = ?
ORDER BY id`

// Same region/city, or either name containing the other.
const similarGymsSQL = `SELECT` + gymColumns + `
FROM gyms
WHERE (region = ? AND city = ? AND region <> '')
   OR (? <> '' AND (name LIKE CONCAT('%', ?, '%') OR ? LIKE CONCAT('%', name, '%')))
ORDER BY id
LIMIT ?`

const insertGymSQL = `
INSERT INTO gyms
  (slug, canonical_id, name, region, city, address, official_url, official_host,
   lat, lon, last_verified_at, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateGymSQL = `
UPDATE gyms SET
  slug             = ?,
  canonical_id     = ?,
  name             = ?,
  region           = ?,
  city             = ?,
  address          = ?,
  official_url     = ?,
  official_host    = ?,
  lat              = ?,
  lon              = ?,
  last_verified_at = ?,
  updated_at       = ?
WHERE id = ?
`

const setGymFreshnessSQL = `UPDATE gyms SET last_verified_at = ?, updated_at = ? WHERE id = ?`

// -----------------------------------------------------------------------------
// SLUG LEDGER
// -----------------------------------------------------------------------------

const slugExistsSQL = `
SELECT EXISTS(SELECT 1 FROM gym_slugs WHERE slug = ?)
    OR EXISTS(SELECT 1 FROM gyms WHERE slug = ?)`

const clearCurrentSlugsSQL = `UPDATE gym_slugs SET is_current = 0 WHERE gym_id = ? AND is_current = 1`

// An identical existing row is left alone; the no-op update keeps this from
// erroring on duplicates.
const insertSlugIfAbsentSQL = `
INSERT INTO gym_slugs (slug, gym_id, is_current, created_at)
VALUES (?, ?, 0, ?)
ON DUPLICATE KEY UPDATE slug = slug
`

const markSlugCurrentSQL = `UPDATE gym_slugs SET is_current = 1 WHERE slug = ? AND gym_id = ?`

const setGymSlugSQL = `UPDATE gyms SET slug = ?, updated_at = ? WHERE id = ?`

const listSlugsSQL = `
SELECT gym_id, slug, is_current, created_at
FROM gym_slugs
WHERE gym_id = ?
ORDER BY created_at, slug`

// -----------------------------------------------------------------------------
// EQUIPMENT
// -----------------------------------------------------------------------------

const equipmentTypesSQL = `SELECT id, slug, name, category FROM equipment_types ORDER BY id`

// Note: `count` is a function name; keep it quoted everywhere.
const linkColumns = "\n  id, gym_id, equipment_type_id, availability, `count`, max_capacity,\n  verification, last_verified_at, source, created_at, updated_at"

const linksByGymSQL = "SELECT" + linkColumns + "\nFROM gym_equipments\nWHERE gym_id = ?\nORDER BY id"

// Locking reads see rows committed after the tx snapshot was taken.
const lockLinksByGymSQL = linksByGymSQL + "\nFOR UPDATE"

const insertLinkSQL = "\nINSERT INTO gym_equipments\n" +
	"  (gym_id, equipment_type_id, availability, `count`, max_capacity,\n" +
	"   verification, last_verified_at, source, created_at, updated_at)\n" +
	"VALUES\n" +
	"  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)\n"

const updateLinkSQL = "\nUPDATE gym_equipments SET\n" +
	"  availability     = ?,\n" +
	"  `count`          = ?,\n" +
	"  max_capacity     = ?,\n" +
	"  verification     = ?,\n" +
	"  last_verified_at = ?,\n" +
	"  source           = ?,\n" +
	"  updated_at       = ?\n" +
	"WHERE id = ?\n"
