package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

//go:embed indexes.sql
var initIndexesSQL string

const (
	insertGroupSQL = `
INSERT OR IGNORE INTO groups (path)
VALUES (?)`

	insertDatasetSQL = `
INSERT INTO datasets (path,
                      kind,
                      length,
                      description)
VALUES (?, ?, ?, ?)`

	selectDatasetSQL = `
SELECT d.id,
       d.path,
       d.kind,
       d.length,
       COALESCE(d.description, '')
FROM datasets d
WHERE d.path = ?
UNION ALL
SELECT d.id,
       d.path,
       d.kind,
       d.length,
       COALESCE(d.description, '')
FROM links l
         JOIN datasets d ON d.id = l.dataset_id
WHERE l.path = ?
LIMIT 1`

	selectDatasetsSQL = `
SELECT id,
       path,
       kind,
       length,
       COALESCE(description, '')
FROM datasets
ORDER BY path`

	insertLinkSQL = `
INSERT INTO links (path, dataset_id)
VALUES (?, ?)`

	selectLinksSQL = `
SELECT l.path,
       d.path
FROM links l
         JOIN datasets d ON d.id = l.dataset_id
ORDER BY l.path`

	upsertAttributeSQL = `
INSERT INTO attributes (target, name, value)
VALUES (?, ?, ?)
ON CONFLICT (target, name) DO UPDATE SET value = excluded.value`

	selectAttributesSQL = `
SELECT name,
       value
FROM attributes
WHERE target = ?
ORDER BY name`

	upsertBlobSQL = `
INSERT INTO blobs (path, data, description)
VALUES (?, ?, ?)
ON CONFLICT (path) DO UPDATE SET data        = excluded.data,
                                 description = excluded.description`

	selectBlobSQL = `
SELECT data
FROM blobs
WHERE path = ?`

	insertMessagesSQL = `
INSERT INTO mil1553_rows (dataset_id,
                          idx,
                          time,
                          timestamp,
                          msg_error,
                          ttb,
                          word_error,
                          sync_error,
                          word_count_error,
                          rsp_tout,
                          format_error,
                          bus_id,
                          packet_version,
                          messages)
VALUES `

	insertFramesSQL = `
INSERT INTO video_rows (dataset_id,
                        idx,
                        frame)
VALUES `

	countMessagesSQL = `
SELECT COUNT(*)
FROM mil1553_rows
WHERE dataset_id = ?`

	countFramesSQL = `
SELECT COUNT(*)
FROM video_rows
WHERE dataset_id = ?`

	selectMessagesSQL = `
SELECT time,
       timestamp,
       msg_error,
       ttb,
       word_error,
       sync_error,
       word_count_error,
       rsp_tout,
       format_error,
       bus_id,
       packet_version,
       messages
FROM mil1553_rows
WHERE dataset_id = ?
  AND time BETWEEN ? AND ?
ORDER BY idx`

	selectFramesSQL = `
SELECT frame
FROM video_rows
WHERE dataset_id = ?
ORDER BY idx`

	deleteSamplesSQL = `
DELETE
FROM aircraft_ins`

	insertSamplesSQL = `
INSERT INTO aircraft_ins (idx,
                          time,
                          latitude,
                          longitude,
                          altitude,
                          speed,
                          heading,
                          roll,
                          pitch,
                          gforce)
VALUES `

	selectSamplesSQL = `
SELECT time,
       latitude,
       longitude,
       altitude,
       speed,
       heading,
       roll,
       pitch,
       gforce
FROM aircraft_ins
WHERE time BETWEEN ? AND ?
ORDER BY idx`

	selectSamplesSpanSQL = `
SELECT COUNT(*),
       COALESCE(MIN(time), 0),
       COALESCE(MAX(time), 0)
FROM aircraft_ins`
)
