package sqlinline

const QInsertPayoutIfAbsent = `--sql 9125583d-9a88-43e3-b32f-965086a45cb4
insert into payouts (
    id, dream_board_id, partner_id, payout_type, gross_cents, fee_cents, charity_cents, net_cents,
    status, recipient_data, created_at, updated_at
)
values (
    gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::bigint, $5::bigint, $6::bigint, $7::bigint,
    'pending', coalesce($8::jsonb, '{}'::jsonb), now(), now()
)
on conflict (dream_board_id, payout_type) do nothing
returning id, status, created_at, updated_at;
`

const QSelectPayoutByID = `--sql e754e879-dac3-4a0b-90af-9cbeee2ebf01
select id, dream_board_id, partner_id, payout_type, gross_cents, fee_cents, charity_cents, net_cents,
       status, recipient_data, external_ref, error_message, created_at, updated_at, completed_at
from payouts
where id = $1::uuid;
`

const QListPayoutsByCampaign = `--sql 3bc14b9f-28ba-4d0b-9789-16be9d59584c
select id, dream_board_id, partner_id, payout_type, gross_cents, fee_cents, charity_cents, net_cents,
       status, recipient_data, external_ref, error_message, created_at, updated_at, completed_at
from payouts
where dream_board_id = $1::uuid
order by created_at asc, payout_type asc;
`

const QMarkPayoutProcessing = `--sql 0418fac4-a293-4b86-9f01-dedc317f6055
update payouts
set status = 'processing',
    external_ref = coalesce($2::text, external_ref),
    error_message = null,
    updated_at = now()
where id = $1::uuid
  and status <> 'completed';
`

const QClaimPayout = `--sql 5f0d7c1e-8a4b-4e27-b6c3-2d9e1f70a845
update payouts
set status = 'processing',
    error_message = null,
    updated_at = now()
where id = $1::uuid
  and status in ('pending', 'failed');
`

const QReleasePayoutClaim = `--sql c2b86e4a-31f9-4d7a-9e05-7a4c1b3d8f62
update payouts
set status = 'pending',
    updated_at = now()
where id = $1::uuid
  and status = 'processing'
  and external_ref is null;
`

const QMarkPayoutCompleted = `--sql 198235a6-ff87-4c33-9124-56732c9773df
update payouts
set status = 'completed',
    external_ref = coalesce($2::text, external_ref),
    error_message = null,
    completed_at = now(),
    updated_at = now()
where id = $1::uuid
  and status <> 'completed';
`

const QMarkPayoutFailed = `--sql a0eac34f-d456-46c7-8f72-a60547af92c6
update payouts
set status = 'failed',
    error_message = $2::text,
    updated_at = now()
where id = $1::uuid
  and status <> 'completed';
`

const QMergePayoutRecipientData = `--sql 7a840e1e-3629-4870-a693-2999b25950b7
update payouts
set recipient_data = recipient_data || coalesce($2::jsonb, '{}'::jsonb),
    updated_at = now()
where id = $1::uuid;
`

const QPayoutCompletionSummary = `--sql 26fa5fda-928f-4f33-9571-56ef0abdb568
select count(*)::int,
       count(*) filter (where status = 'completed')::int
from payouts
where dream_board_id = $1::uuid;
`

const QClaimPendingPayouts = `--sql d10ec707-8151-4e67-9b32-835027a922e8
with claimed as (
    select id
    from payouts
    where status = 'pending'
      and payout_type = any($1::text[])
    order by created_at asc
    limit $2::int
    for update skip locked
)
update payouts p
set status = 'processing',
    updated_at = now()
from claimed
where p.id = claimed.id
returning p.id, p.dream_board_id, p.partner_id, p.payout_type, p.gross_cents, p.fee_cents, p.charity_cents,
          p.net_cents, p.status, p.recipient_data, p.external_ref, p.error_message, p.created_at, p.updated_at,
          p.completed_at;
`
