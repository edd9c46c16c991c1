package sqlite

// An existing row is only replaced when it is not terminal and the incoming
// status does not rank lower, matching domain.CanTransition.
const upsertRecord = `
INSERT INTO entity_records (
    request_id, entity_id, title, position, input_image_urls, output_image_urls,
    status, error_message, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (request_id, entity_id) DO UPDATE SET
    title             = excluded.title,
    position          = excluded.position,
    input_image_urls  = excluded.input_image_urls,
    output_image_urls = excluded.output_image_urls,
    status            = excluded.status,
    error_message     = excluded.error_message,
    updated_at        = excluded.updated_at
WHERE entity_records.status NOT IN ('complete', 'failed')
  AND (CASE excluded.status WHEN 'pending' THEN 0 WHEN 'in-progress' THEN 1 ELSE 2 END)
   >= (CASE entity_records.status WHEN 'pending' THEN 0 WHEN 'in-progress' THEN 1 ELSE 2 END)`

const listRecordsByRequest = `
SELECT request_id, entity_id, title, position, input_image_urls, output_image_urls,
       status, error_message, created_at, updated_at
FROM entity_records
WHERE request_id = ?
ORDER BY position, entity_id`

const deleteExpiredRecords = `
DELETE FROM entity_records
WHERE status IN ('complete', 'failed')
  AND updated_at < ?`
