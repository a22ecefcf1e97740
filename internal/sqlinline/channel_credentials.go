package sqlinline

// Payout channel API tokens stored by payoutctl. Properties are merged so
// rotating a token keeps earlier metadata.

const QSelectChannelToken = `--sql 0b6f3c2e-58d4-4a7e-9f1a-2c83d5e4a917
select token
from integration_tokens
where provider = $1::text and token <> '';
`

const QUpsertChannelToken = `--sql c41e7a90-3d2b-4f65-8b0e-7a19f6d2c853
insert into integration_tokens (provider, token, properties)
values ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
