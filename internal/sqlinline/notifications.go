package sqlinline

const QInsertNotification = `--sql a328945d-d648-4160-b5af-d2d8ce9d3c39
insert into notifications(id, owner_id, kind, message, created_at)
values (gen_random_uuid(), $1::uuid, $2::text, $3::text, now());
`

const QEnqueueReceipt = `--sql 16476383-30d0-4bab-bdc3-72757782a4aa
insert into receipt_outbox(id, donation_id, owner_id, payload, status, created_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::jsonb, 'queued', now())
on conflict (donation_id) do nothing;
`
