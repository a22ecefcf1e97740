package sqlinline

const QSelectCampaignByID = `--sql 23d85083-90c9-4ee4-93f7-d571890859f7
select d.id, d.partner_id, d.slug, d.child_name, d.gift_name, d.goal_cents, d.status,
       d.charity_enabled, d.charity_id, c.cause_id, d.charity_split_type,
       d.charity_percentage_bps, d.charity_threshold_cents,
       d.payout_method, d.payout_email, d.recipient_data, d.created_at, d.updated_at
from dream_boards d
left join charities c on c.id = d.charity_id
where d.id = $1::uuid;
`

const QTransitionCampaignStatus = `--sql fb68987a-d4e9-4238-8ebe-b5cd63f3d62c
update dream_boards
set status = $3::text,
    updated_at = now()
where id = $1::uuid
  and status = any($2::text[]);
`
