package sqlinline

const QSelectActiveSubscriptions = `--sql a9e64f11-b187-431b-84dc-c01a5a9ce09f
select id, partner_id, url, secret, event_types, is_active
from partner_webhook_subscriptions
where partner_id = $1::uuid
  and is_active;
`

const QInsertPartnerEvent = `--sql 97506a38-1fe0-4abb-ae21-835e3c950ca1
insert into partner_webhook_events (
    id, subscription_id, partner_id, event_type, payload, status, attempts, next_attempt_at, created_at
)
values ($1::text, $2::uuid, $3::uuid, $4::text, $5::jsonb, 'pending', 0, now(), now());
`

const QClaimDuePartnerEvents = `--sql 6925eeb1-08e7-4195-952d-bde9ed248cf8
with due as (
    select id
    from partner_webhook_events
    where status = 'pending'
      and next_attempt_at <= $1::timestamptz
    order by next_attempt_at asc
    limit $3::int
    for update skip locked
)
update partner_webhook_events e
set next_attempt_at = $2::timestamptz
from due, partner_webhook_subscriptions s
where e.id = due.id
  and s.id = e.subscription_id
returning e.id, e.subscription_id, e.partner_id, e.event_type, e.payload, e.status, e.attempts,
          e.next_attempt_at, e.created_at, s.url, s.secret;
`

const QMarkPartnerEventDelivered = `--sql 5f70287c-ad25-44c6-9230-a9402e54c895
update partner_webhook_events
set status = 'delivered',
    attempts = attempts + 1,
    last_status_code = $2::int,
    last_error = null,
    delivered_at = now()
where id = $1::text;
`

const QMarkPartnerEventAttemptFailed = `--sql 9d9d5144-0039-4646-9487-16c5af7d5fb4
update partner_webhook_events
set attempts = $2::int,
    status = case when $3::timestamptz is null then 'failed' else 'pending' end,
    next_attempt_at = coalesce($3::timestamptz, next_attempt_at),
    last_status_code = $4::int,
    last_error = $5::text
where id = $1::text;
`
