package sqlinline

const QIncrementDonorTotals = `--sql e02c8a92-6508-4e90-a84a-8567f5b0a279
insert into donors(owner_id, lifetime_amount, donation_count, updated_at)
values ($1::uuid, $2::numeric, 1, now())
on conflict (owner_id) do update
set lifetime_amount = donors.lifetime_amount + excluded.lifetime_amount,
    donation_count = donors.donation_count + 1,
    updated_at = now()
returning owner_id, lifetime_amount::text, donation_count, updated_at;
`

const QSelectDonorAggregate = `--sql 0dea092a-622f-4474-9e40-5abe31a8ad3f
select owner_id, lifetime_amount::text, donation_count, updated_at
from donors
where owner_id = $1::uuid;
`

const QAwardAchievement = `--sql d2b99985-2fea-4b59-9d70-b76564476566
insert into donor_achievements(owner_id, code, awarded_at)
values ($1::uuid, $2::text, now())
on conflict (owner_id, code) do nothing;
`
