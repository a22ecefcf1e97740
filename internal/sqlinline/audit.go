package sqlinline

const QInsertAuditLog = `--sql bde46bd7-50df-4d0e-9353-8cabe566715d
insert into audit_logs (
    id, actor_type, actor_id, actor_ip, actor_country, action, target_type, target_id, metadata, created_at
)
values (
    gen_random_uuid(), $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text,
    coalesce($8::jsonb, '{}'::jsonb), now()
);
`
