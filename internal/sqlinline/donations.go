package sqlinline

const QInsertDonation = `--sql 2cac3500-ee68-4aae-a443-bb4f524518cb
insert into donations(id, owner_id, amount, currency, payment_method, correlation_id, status, receipt_fields, metadata, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::numeric, $4::text, $5::text, $6::text, 'pending', '{}'::jsonb, coalesce($7::jsonb, '{}'::jsonb), now(), now());
`

const QAssignCorrelationID = `--sql d0573785-18a6-4fc8-b796-33cc002c9575
update donations
set correlation_id = $2::text, updated_at = now()
where id = $1::uuid and status = 'pending';
`

// QTransitionDonation is the single conditional update that settles a
// donation. The status = 'pending' guard makes concurrent duplicate
// callbacks race for exactly one winner; processed_at is claimed in the
// same statement so the winner alone owns side-effect dispatch.
const QTransitionDonation = `--sql 26bf87e1-dd36-454c-85fd-665c1dbb4af3
update donations
set status = $2::text,
    receipt_fields = coalesce($3::jsonb, '{}'::jsonb),
    processed_at = case when $2::text = 'completed' then now() else processed_at end,
    updated_at = now()
where correlation_id = $1::text and status = 'pending'
returning id, owner_id, amount::text, currency, payment_method, correlation_id, status, receipt_fields, metadata, processed_at, created_at, updated_at;
`

const QSelectDonationByID = `--sql 5e5f53be-e003-46d2-8abb-d0bef5c24dd1
select id, owner_id, amount::text, currency, payment_method, correlation_id, status, receipt_fields, metadata, processed_at, created_at, updated_at
from donations
where id = $1::uuid;
`

const QSelectDonationByCorrelationID = `--sql 408fbb31-eb96-49ef-b782-d0f2ecb1ab6a
select id, owner_id, amount::text, currency, payment_method, correlation_id, status, receipt_fields, metadata, processed_at, created_at, updated_at
from donations
where correlation_id = $1::text;
`

const QExpireStaleDonations = `--sql 4cea1c7f-9933-4e7e-a199-ef5de34426a9
update donations
set status = 'failed',
    receipt_fields = receipt_fields || jsonb_build_object('expired_by_sweep', true),
    updated_at = now()
where status = 'pending' and created_at < now() - $1::interval;
`
