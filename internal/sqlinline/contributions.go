package sqlinline

const QInsertContribution = `--sql 760be3be-5150-413d-91de-699deeb62fbd
insert into contributions (
    id, dream_board_id, partner_id, contributor_name, message, amount_cents, fee_cents,
    payment_provider, payment_ref, payment_status, ip_address, created_at, updated_at
)
values (
    gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::text, $5::bigint, $6::bigint,
    $7::text, $8::text, $9::text, $10::text, now(), now()
)
returning id, created_at, updated_at;
`

const QSelectContributionByID = `--sql 3a94c99c-1308-445b-ad49-6cf563c6db88
select id, dream_board_id, partner_id, contributor_name, message, amount_cents, fee_cents,
       charity_cents, payment_provider, payment_ref, payment_status, ip_address, created_at, updated_at
from contributions
where id = $1::uuid;
`

const QSelectContributionByPaymentRef = `--sql 3b2030e3-ba57-45e8-a143-5f605951275b
select id, dream_board_id, partner_id, contributor_name, message, amount_cents, fee_cents,
       charity_cents, payment_provider, payment_ref, payment_status, ip_address, created_at, updated_at
from contributions
where payment_provider = $1::text
  and payment_ref = $2::text;
`

const QUpdateContributionStatus = `--sql 6ce3cc52-4299-4688-9721-8d3f45388780
update contributions
set payment_status = $2::text,
    updated_at = now()
where id = $1::uuid
  and payment_status <> 'completed';
`

const QMarkContributionCompleted = `--sql 4818d5d8-758a-406b-8972-92cf575c81fd
update contributions
set payment_status = 'completed',
    charity_cents = coalesce(charity_cents, $2::bigint),
    updated_at = now()
where id = $1::uuid
  and payment_status <> 'completed';
`

const QSumCompletedCharityCents = `--sql 9cabc772-3f56-41bb-8d17-27ee1e204724
select coalesce(sum(charity_cents), 0)::bigint
from contributions
where dream_board_id = $1::uuid
  and payment_status = 'completed'
  and id <> $2::uuid;
`

const QCampaignContributionTotals = `--sql a614cca2-0f90-43bf-83f7-424b46c0e710
select coalesce(sum(amount_cents), 0)::bigint,
       coalesce(sum(fee_cents), 0)::bigint,
       coalesce(sum(charity_cents), 0)::bigint,
       count(*)::bigint
from contributions
where dream_board_id = $1::uuid
  and payment_status = 'completed';
`

const QListUnsettledContributions = `--sql e81f4a27-6c0b-4d93-a5f8-39b2d7c06e14
select id, dream_board_id, partner_id, contributor_name, message, amount_cents, fee_cents,
       charity_cents, payment_provider, payment_ref, payment_status, ip_address, created_at, updated_at
from contributions
where payment_status in ('pending', 'processing')
  and created_at >= $1::timestamptz
  and created_at < $2::timestamptz
order by created_at asc
limit $3::int;
`
